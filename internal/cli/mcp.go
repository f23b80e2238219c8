package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/pkg/adapters/mcp"
	"github.com/aretw0/weft/pkg/runner"
)

// MCPOptions configures the mcp command.
type MCPOptions struct {
	Config    config.Config
	Image     string
	Transport string // "stdio" or "sse"
	Port      int
	// Follow drives rounds in the background. Without it the client drives
	// them with the run_round tool.
	Follow bool
}

// ServeMCP exposes the engine as an MCP server until ctx ends or the stdio
// peer disconnects.
func ServeMCP(ctx context.Context, opts MCPOptions) (err error) {
	logger, logCloser, err := createLogger(opts.Config.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	engine, err := createEngine(opts.Config, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if opts.Image != "" {
		img, err := loadImage(opts.Image, opts.Config)
		if err != nil {
			return err
		}
		if err := engine.Deposit(ctx, img); err != nil {
			return fmt.Errorf("error depositing image: %w", err)
		}
	}

	signals := runner.NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	if opts.Follow {
		loopCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		defer func() {
			stop()
			<-done
		}()
		go func() {
			defer close(done)
			runOpts := append(runnerOptions(opts.Config, true), runner.WithLogger(logger))
			if _, err := engine.Run(loopCtx, runOpts...); err != nil {
				logger.Error("Round loop failed", "err", err)
			}
		}()
	}

	srv := mcp.NewServer(engine, mcp.WithLogger(logger))
	switch opts.Transport {
	case "", "stdio":
		logger.Info("Starting weft MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, opts.Port)
	}
	return fmt.Errorf("unknown transport %q (supported: stdio, sse)", opts.Transport)
}
