package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/pkg/image"
	"github.com/aretw0/weft/pkg/runner"
	"github.com/aretw0/weft/pkg/scheduler"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config config.Config
	// Image is deposited before the first round. Empty resumes whatever the
	// configured store already holds.
	Image  string
	Follow bool
	Quiet  bool
	Out    io.Writer
}

func (o RunOptions) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// loadImage reads path with the configured default budget.
func loadImage(path string, cfg config.Config) (*image.Image, error) {
	img, err := image.LoadFile(path, image.WithBudget(cfg.Budget))
	if err != nil {
		return nil, fmt.Errorf("error loading image: %w", err)
	}
	return img, nil
}

// runnerOptions maps the config onto the round loop.
func runnerOptions(cfg config.Config, follow bool) []runner.Option {
	return []runner.Option{
		runner.WithFollow(follow),
		runner.WithMaxRounds(cfg.MaxRounds),
		runner.WithTimeout(cfg.Timeout),
		runner.WithIdleInterval(cfg.IdleInterval),
		runner.WithSignals(true),
	}
}

// Run handles the 'run' command: deposit an image, drive rounds, print what
// every process ended with.
func Run(ctx context.Context, opts RunOptions) (err error) {
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
		logger.Info("Image deposited", "image", opts.Image, "processes", len(img.Processes), "channel", img.Channel)
	}

	w := opts.out()
	runOpts := runnerOptions(opts.Config, opts.Follow)
	if !opts.Quiet {
		runOpts = append(runOpts, runner.WithReporter(func(r scheduler.Report) {
			if r.Ready > 0 {
				printSystemMessage(w, "round %d: %d ready, %d completed, %d failed", r.Round, r.Ready, r.Completed, r.Failed)
			}
		}))
	}

	sum, runErr := engine.Run(ctx, runOpts...)

	// Report whatever state was reached, even when the run stopped early.
	results, err := engine.Results(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("error reading results: %w", err)
	}
	printResults(w, results)
	if !opts.Quiet {
		printSummary(w, sum)
	}
	return runErr
}
