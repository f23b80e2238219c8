package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/muesli/termenv"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// createLogger configures the application logger from cfg.
// Logs go to stderr so stdout stays clean for results.
func createLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File == "" {
		return logging.New(level), nopCloser{}, nil
	}
	return logging.NewWithFile(level, cfg.File)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// printResults writes one line per parked process, colored by state when w
// is a terminal.
func printResults(w io.Writer, results []weft.Result) {
	out := termenv.NewOutput(w)
	for _, res := range results {
		state := out.String(fmt.Sprintf("%-9s", res.State))
		switch res.State {
		case domain.StateCompleted:
			state = state.Foreground(out.Color("2"))
		case domain.StateFailed:
			state = state.Foreground(out.Color("1")).Bold()
		case domain.StateWaiting:
			state = state.Foreground(out.Color("3"))
		}

		detail := ""
		switch res.State {
		case domain.StateCompleted:
			if res.Value != nil {
				detail = res.Value.String()
			}
		case domain.StateFailed:
			detail = res.Failure
		}
		fmt.Fprintf(w, "%s %s %s\n", state, res.ID, detail)
	}
}

// printSummary writes the closing line of a run.
func printSummary(w io.Writer, sum scheduler.Summary) {
	status := "quiescent"
	if !sum.Quiescent {
		status = "stopped"
	}
	printSystemMessage(w, "%s after %d rounds: %d executed, %d completed, %d failed (%s)",
		status, sum.Rounds, sum.Executed, sum.Completed, sum.Failed, sum.Duration.Round(time.Millisecond))
}

// closeAll closes every closer and joins their errors.
func closeAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
