package weft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/image"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/region"
	"github.com/aretw0/weft/pkg/runner"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

type scope struct {
	kind  uint8
	label string
}

// Engine is the high-level entry point for the weft library.
// It wires a tuple space, a scheduler and a notification stream.
type Engine struct {
	space     ports.TupleSpace
	scheduler *scheduler.Scheduler
	stream    *observability.Stream
	logger    *slog.Logger

	channels []domain.Name
	scopes   []scope
	workers  int
	hooks    domain.LifecycleHooks
	registry prometheus.Registerer
	regions  *region.Manager
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSpace sets the tuple space. The engine closes it on Close.
func WithSpace(space ports.TupleSpace) Option {
	return func(e *Engine) {
		e.space = space
	}
}

// WithChannels adds process channels.
func WithChannels(names ...domain.Name) Option {
	return func(e *Engine) {
		e.channels = append(e.channels, names...)
	}
}

// WithScope discovers process channels under a hierarchical scope.
func WithScope(kind uint8, label string) Option {
	return func(e *Engine) {
		e.scopes = append(e.scopes, scope{kind: kind, label: label})
	}
}

// WithWorkers bounds how many processes execute at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability hooks alongside the notification stream.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRegistry enables store and scheduler metrics on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithRegions shares a region manager between engines.
func WithRegions(m *region.Manager) Option {
	return func(e *Engine) {
		e.regions = m
	}
}

// New initializes an Engine. Without options it runs on a flat in-memory
// space and schedules the image.DefaultChannel.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: logging.NewNop(),
		stream: observability.NewStream(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.space == nil {
		e.space = memory.NewSpace()
	}
	if len(e.channels) == 0 && len(e.scopes) == 0 {
		e.channels = []domain.Name{image.DefaultChannel}
	}

	if len(e.scopes) > 0 {
		if _, ok := e.space.(ports.Scoped); !ok {
			return nil, fmt.Errorf("scope discovery: %w", ports.ErrNotScoped)
		}
	}

	mws := []middleware.Middleware{middleware.NewLogging(e.logger)}
	if e.registry != nil {
		mws = append(mws, middleware.NewMetrics(e.registry))
	}
	e.space = middleware.Chain(e.space, mws...)

	schedOpts := []scheduler.Option{
		scheduler.WithChannels(e.channels...),
		scheduler.WithLogger(e.logger),
		scheduler.WithHooks(observability.Combine(e.hooks, e.stream.Hooks())),
	}
	for _, sc := range e.scopes {
		schedOpts = append(schedOpts, scheduler.WithScope(sc.kind, sc.label))
	}
	if e.workers > 0 {
		schedOpts = append(schedOpts, scheduler.WithWorkers(e.workers))
	}
	if e.registry != nil {
		schedOpts = append(schedOpts, scheduler.WithMetrics(scheduler.NewMetrics(e.registry)))
	}
	if e.regions != nil {
		schedOpts = append(schedOpts, scheduler.WithRegions(e.regions))
	}
	e.scheduler = scheduler.New(e.space, schedOpts...)
	return e, nil
}

// Space returns the engine's tuple space, wrapped with its middleware.
func (e *Engine) Space() ports.TupleSpace { return e.space }

// Scheduler returns the underlying scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Deposit seeds the space with an image. The image channel must be one the
// engine schedules.
func (e *Engine) Deposit(ctx context.Context, img *image.Image) error {
	if len(e.scopes) == 0 && !slices.Contains(e.channels, img.Channel) {
		return fmt.Errorf("image channel %s is not scheduled by this engine", img.Channel)
	}
	return img.Deposit(ctx, e.space)
}

// Round runs one scheduling round.
func (e *Engine) Round(ctx context.Context) (scheduler.Report, error) {
	return e.scheduler.Round(ctx)
}

// Run drives rounds until quiescence, or as configured by opts.
func (e *Engine) Run(ctx context.Context, opts ...runner.Option) (scheduler.Summary, error) {
	opts = append([]runner.Option{runner.WithLogger(e.logger)}, opts...)
	return runner.New(e.scheduler, opts...).Run(ctx)
}

// Subscribe streams terminal process events. Cancel to stop receiving.
func (e *Engine) Subscribe(buffer int) (<-chan domain.ProcessEvent, func()) {
	return e.stream.Subscribe(buffer)
}

// Result is the observed state of one parked process.
type Result struct {
	Channel domain.Name
	ID      domain.Name
	State   domain.State
	Value   domain.Value
	Failure string
}

// Observe calls fn with the value at the head of ch while no round can run
// on ch. Use it instead of Space().Peek to read process channels of a live
// engine; fn must not retain v.
func (e *Engine) Observe(ctx context.Context, ch domain.Name, fn func(v domain.Value) error) error {
	return e.scheduler.Observe(ctx, ch, fn)
}

// Results lists the processes in the group at the head of each process
// channel, in group order. Each channel is copied out under its region.
func (e *Engine) Results(ctx context.Context) ([]Result, error) {
	channels, err := e.scheduler.Channels(ctx)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, ch := range channels {
		err := e.scheduler.Observe(ctx, ch, func(v domain.Value) error {
			group, ok := v.(domain.Par)
			if !ok {
				return fmt.Errorf("%s: %w", ch, domain.ErrNotParallel)
			}
			for _, p := range group {
				out = append(out, Result{
					Channel: ch,
					ID:      p.ID(),
					State:   p.State(),
					Value:   p.Result(),
					Failure: p.Failure(),
				})
			}
			return nil
		})
		if errors.Is(err, domain.ErrEmpty) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close ends every subscription and closes the space.
func (e *Engine) Close() error {
	e.stream.Close()
	return e.space.Close()
}
