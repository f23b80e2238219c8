package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/region"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker pool size when WithWorkers is not given.
const DefaultWorkers = 4

// ErrNoChannels is returned by Round when no process channel is configured
// and scope discovery found none.
var ErrNoChannels = errors.New("no process channels configured")

// ErrRoundLimit is returned by RunUntilQuiescent when the round limit is
// reached while processes are still runnable.
var ErrRoundLimit = errors.New("round limit reached before quiescence")

type scope struct {
	kind  uint8
	label string
}

// Scheduler executes the processes parked on its process channels.
type Scheduler struct {
	space    ports.TupleSpace
	channels []domain.Name
	scopes   []scope
	workers  int
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	metrics  *Metrics
	regions  *region.Manager
	rounds   atomic.Uint64
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithChannels adds fixed process channels.
func WithChannels(names ...domain.Name) Option {
	return func(s *Scheduler) {
		s.channels = append(s.channels, names...)
	}
}

// WithScope discovers process channels under label on every round. The space
// must implement ports.Scoped.
func WithScope(kind uint8, label string) Option {
	return func(s *Scheduler) {
		s.scopes = append(s.scopes, scope{kind: kind, label: label})
	}
}

// WithWorkers bounds how many processes execute at once. One runs the batch serially.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.hooks = hooks
	}
}

// WithMetrics records rounds and outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithRegions shares a region manager, typically one backed by a distributed
// locker, so independent drivers never run the same channel concurrently.
func WithRegions(m *region.Manager) Option {
	return func(s *Scheduler) {
		s.regions = m
	}
}

// New creates a scheduler over space.
func New(space ports.TupleSpace, opts ...Option) *Scheduler {
	s := &Scheduler{
		space:   space,
		workers: DefaultWorkers,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.regions == nil {
		s.regions = region.NewManager(region.WithLogger(s.logger))
	}
	return s
}

// ChannelReport describes the work done on one process channel.
type ChannelReport struct {
	Channel   domain.Name
	Woken     int
	Ready     int
	Completed int
	Failed    int
	Waiting   int
	Runnable  int
}

// Report describes one round.
type Report struct {
	Round     uint64
	Channels  []ChannelReport
	Ready     int
	Completed int
	Failed    int
	Duration  time.Duration
}

func (r *Report) add(c ChannelReport) {
	r.Channels = append(r.Channels, c)
	r.Ready += c.Ready
	r.Completed += c.Completed
	r.Failed += c.Failed
}

// Summary aggregates the rounds of RunUntilQuiescent.
type Summary struct {
	Rounds    int
	Executed  int
	Completed int
	Failed    int
	Quiescent bool
	Duration  time.Duration
}

// Channels resolves the process channels for the next round: the fixed ones
// followed by those discovered under each scope, without duplicates.
func (s *Scheduler) Channels(ctx context.Context) ([]domain.Name, error) {
	out := slices.Clone(s.channels)
	if len(s.scopes) > 0 {
		scoped, ok := s.space.(ports.Scoped)
		if !ok {
			return nil, ports.ErrNotScoped
		}
		for _, sc := range s.scopes {
			found, err := scoped.Channels(ctx, sc.kind, sc.label)
			if err != nil {
				return nil, fmt.Errorf("discover %d:%s: %w", sc.kind, sc.label, err)
			}
			out = append(out, found...)
		}
	}

	seen := make(map[domain.Name]struct{}, len(out))
	uniq := out[:0]
	for _, n := range out {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}
	if len(uniq) == 0 {
		return nil, ErrNoChannels
	}
	return uniq, nil
}

// Observe calls fn with the value at the head of ch while holding the
// channel's region, so no round mutates the processes it holds meanwhile.
// fn must not retain v. An empty channel returns domain.ErrEmpty without
// calling fn.
func (s *Scheduler) Observe(ctx context.Context, ch domain.Name, fn func(v domain.Value) error) error {
	return s.regions.WithLock(ctx, ch.String(), func(ctx context.Context) error {
		v, err := s.space.Peek(ctx, ch.NS, ch.String())
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// Round runs one scheduling pass over every process channel.
//
// A failing process never aborts the round. Store and usage errors on one
// channel are collected and returned once the other channels have run; any
// process already drained is written back first.
func (s *Scheduler) Round(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Round: s.rounds.Add(1)}

	channels, err := s.Channels(ctx)
	if err != nil {
		return report, err
	}

	if s.hooks.OnRoundStart != nil {
		s.hooks.OnRoundStart(ctx, &domain.RoundEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventRoundStart},
			Round:     report.Round,
		})
	}

	var errs []error
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var cr ChannelReport
		err := s.regions.WithLock(ctx, ch.String(), func(ctx context.Context) error {
			var err error
			cr, err = s.runChannel(ctx, ch)
			return err
		})
		if err != nil {
			s.logger.Warn("round failed on channel", "round", report.Round, "channel", ch.String(), "err", err)
			errs = append(errs, fmt.Errorf("channel %s: %w", ch, err))
		}
		if cr.Channel == ch {
			report.add(cr)
		}
	}

	report.Duration = time.Since(start)
	s.observeRound(&report)

	if s.hooks.OnRoundEnd != nil {
		s.hooks.OnRoundEnd(ctx, &domain.RoundEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRoundEnd},
			Round:     report.Round,
			Ready:     report.Ready,
			Duration:  report.Duration,
		})
	}

	s.logger.Debug("round complete",
		"round", report.Round,
		"channels", len(channels),
		"ready", report.Ready,
		"completed", report.Completed,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, errors.Join(errs...)
}

func (s *Scheduler) runChannel(ctx context.Context, ch domain.Name) (ChannelReport, error) {
	cr := ChannelReport{Channel: ch}

	woken, err := s.consolidate(ctx, ch)
	cr.Woken = woken
	if err != nil {
		return cr, err
	}

	batch, err := Drain(ctx, s.space, ch)
	cr.Ready = len(batch)
	if len(batch) == 0 {
		return cr, err
	}
	drainErr := err

	outcomes, execErr := s.execute(ctx, batch)

	// Write back even when the round was cancelled; the processes keep their state.
	if err := s.writeBack(context.WithoutCancel(ctx), ch, batch); err != nil {
		return cr, errors.Join(drainErr, execErr, err)
	}

	for i, out := range outcomes {
		switch out.State {
		case domain.StateCompleted:
			cr.Completed++
		case domain.StateFailed:
			cr.Failed++
		case domain.StateWaiting:
			cr.Waiting++
		default:
			cr.Runnable++
		}
		if out.State.Terminal() {
			// A terminal process never runs again, so its event must not be lost.
			s.notify(context.WithoutCancel(ctx), ch, batch[i], out)
		}
	}
	return cr, errors.Join(drainErr, execErr)
}

// consolidate merges every group on ch into one at the head of the channel
// and marks runnable the waiting processes whose channel now holds a value.
// Values that are not groups stay queued behind it in their original order.
func (s *Scheduler) consolidate(ctx context.Context, ch domain.Name) (int, error) {
	queued, err := takeAll(ctx, s.space, ch)
	merged, groups, rest := merge(queued)
	if groups == 0 {
		return 0, errors.Join(err, putBack(context.WithoutCancel(ctx), s.space, ch, rest))
	}

	woken := 0
	for _, p := range merged {
		wait, blocked := p.Blocked()
		if !blocked {
			continue
		}
		if _, perr := s.space.Peek(ctx, wait.NS, wait.String()); perr != nil {
			if !errors.Is(perr, domain.ErrEmpty) {
				err = errors.Join(err, fmt.Errorf("wake %s: %w", p.ID(), perr))
			}
			continue
		}
		if merr := p.MarkRunnable(); merr == nil {
			woken++
		}
	}

	values := append([]domain.Value{merged}, rest...)
	if terr := putBack(context.WithoutCancel(ctx), s.space, ch, values); terr != nil {
		return woken, errors.Join(err, fmt.Errorf("consolidate: %w", terr))
	}
	return woken, err
}

// execute runs the batch on the worker pool. Only context errors surface.
func (s *Scheduler) execute(ctx context.Context, batch []*domain.Process) ([]domain.Outcome, error) {
	outcomes := make([]domain.Outcome, len(batch))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, p := range batch {
		g.Go(func() error {
			out, err := p.Execute(ctx, s.space)
			outcomes[i] = out
			if err != nil {
				return fmt.Errorf("execute %s: %w", p.ID(), err)
			}
			s.logger.Debug("process executed", "process", p.ID().String(), "state", out.State.String())
			return nil
		})
	}
	return outcomes, g.Wait()
}

// writeBack stores the batch with any groups queued meanwhile as one group
// at the head of ch.
func (s *Scheduler) writeBack(ctx context.Context, ch domain.Name, batch []*domain.Process) error {
	queued, err := takeAll(ctx, s.space, ch)
	merged, _, rest := merge(queued)
	group := make(domain.Par, 0, len(merged)+len(batch))
	group = append(group, merged...)
	group = append(group, batch...)
	values := append([]domain.Value{group}, rest...)
	if terr := putBack(ctx, s.space, ch, values); terr != nil {
		return errors.Join(err, fmt.Errorf("write back: %w", terr))
	}
	return err
}

func (s *Scheduler) notify(ctx context.Context, ch domain.Name, p *domain.Process, out domain.Outcome) {
	ev := &domain.ProcessEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventProcessCompleted},
		ProcessID: p.ID(),
		Channel:   ch,
		Value:     out.Value,
	}
	if out.State == domain.StateFailed {
		ev.Type = domain.EventProcessFailed
		ev.Failure = out.Failure
		ev.Value = nil
		s.logger.Debug("process failed", "process", p.ID().String(), "failure", out.Failure)
	} else {
		s.logger.Debug("process completed", "process", p.ID().String(), "value", out.Value.String())
	}
	if s.hooks.OnProcessDone != nil {
		s.hooks.OnProcessDone(ctx, ev)
	}
}

func (s *Scheduler) observeRound(r *Report) {
	if s.metrics == nil {
		return
	}
	s.metrics.Rounds.Inc()
	s.metrics.Ready.Set(float64(r.Ready))
	s.metrics.RoundDuration.Observe(r.Duration.Seconds())
	for _, c := range r.Channels {
		s.add("completed", c.Completed)
		s.add("failed", c.Failed)
		s.add("waiting", c.Waiting)
		s.add("runnable", c.Runnable)
	}
}

func (s *Scheduler) add(outcome string, n int) {
	if n > 0 {
		s.metrics.Processes.WithLabelValues(outcome).Add(float64(n))
	}
}

// RunUntilQuiescent runs rounds until one drains no runnable process. A
// maxRounds of zero or less means no limit. Errors stop the loop.
func (s *Scheduler) RunUntilQuiescent(ctx context.Context, maxRounds int) (sum Summary, err error) {
	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	for maxRounds <= 0 || sum.Rounds < maxRounds {
		var report Report
		report, err = s.Round(ctx)
		sum.Rounds++
		sum.Executed += report.Ready
		sum.Completed += report.Completed
		sum.Failed += report.Failed
		if err != nil {
			return sum, err
		}
		if report.Ready == 0 {
			sum.Quiescent = true
			return sum, nil
		}
	}
	return sum, fmt.Errorf("%w: %d rounds", ErrRoundLimit, maxRounds)
}
