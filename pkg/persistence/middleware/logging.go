package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.TupleSpace
	logger *slog.Logger
}

// NewLogging logs every operation at debug level. Failures other than an
// empty channel are logged at warn level.
func NewLogging(logger *slog.Logger) Middleware {
	return func(next ports.TupleSpace) ports.TupleSpace {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, channel string, err error) {
	switch {
	case err == nil:
		m.logger.DebugContext(ctx, "space op", "op", op, "channel", channel)
	case errors.Is(err, domain.ErrEmpty):
		m.logger.DebugContext(ctx, "space op", "op", op, "channel", channel, "empty", true)
	default:
		m.logger.WarnContext(ctx, "space op failed", "op", op, "channel", channel, "err", err)
	}
}

func (m *loggingMiddleware) Tell(ctx context.Context, kind uint8, channel string, v domain.Value) error {
	err := m.next.Tell(ctx, kind, channel, v)
	m.log(ctx, "tell", channel, err)
	return err
}

func (m *loggingMiddleware) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	v, err := m.next.Ask(ctx, kind, channel)
	m.log(ctx, "ask", channel, err)
	return v, err
}

func (m *loggingMiddleware) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	v, err := m.next.Peek(ctx, kind, channel)
	m.log(ctx, "peek", channel, err)
	return v, err
}

func (m *loggingMiddleware) Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error) {
	return channels(ctx, m.next, kind, scope)
}

func (m *loggingMiddleware) Reset(ctx context.Context) error {
	err := m.next.Reset(ctx)
	m.log(ctx, "reset", "", err)
	return err
}

func (m *loggingMiddleware) Close() error {
	return m.next.Close()
}
