package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/weft/internal/config"
	httpAdapter "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long outstanding requests get on shutdown.
const ShutdownTimeout = 5 * time.Second

// ServeOptions contains the configuration for the serve command.
type ServeOptions struct {
	Config config.Config
	Image  string
	Out    io.Writer
	// Ready, if set, receives the bound address once the listener is up.
	Ready func(addr string)
}

// Serve drives rounds in follow mode while exposing the engine over HTTP.
// It returns when ctx ends or a signal arrives, after a graceful shutdown.
func Serve(ctx context.Context, opts ServeOptions) (err error) {
	w := opts.Out
	if w == nil {
		w = os.Stdout
	}

	logger, logCloser, err := createLogger(opts.Config.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := createEngine(opts.Config, logger, reg)
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

	ln, err := net.Listen("tcp", opts.Config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", opts.Config.Listen, err)
	}
	g, gctx := errgroup.WithContext(signals.Context())
	srv := &http.Server{
		Handler: httpAdapter.NewHandler(engine,
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming requests end with the server instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	printSystemMessage(w, "serving %s backend on %s", opts.Config.Backend, ln.Addr())
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runOpts := append(runnerOptions(opts.Config, true), runner.WithLogger(logger))
		sum, err := engine.Run(gctx, runOpts...)
		logger.Info("Round loop stopped", "rounds", sum.Rounds, "executed", sum.Executed)
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		return nil
	})

	err = g.Wait()
	printSystemMessage(w, "server stopped")
	return err
}
