package observability

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// Combine merges several hook sets; each callback runs the non-nil callbacks
// of every set in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	var starts, ends []func(context.Context, *domain.RoundEvent)
	var dones []func(context.Context, *domain.ProcessEvent)
	for _, h := range sets {
		if h.OnRoundStart != nil {
			starts = append(starts, h.OnRoundStart)
		}
		if h.OnRoundEnd != nil {
			ends = append(ends, h.OnRoundEnd)
		}
		if h.OnProcessDone != nil {
			dones = append(dones, h.OnProcessDone)
		}
	}
	if len(starts) > 0 {
		out.OnRoundStart = func(ctx context.Context, ev *domain.RoundEvent) {
			for _, fn := range starts {
				fn(ctx, ev)
			}
		}
	}
	if len(ends) > 0 {
		out.OnRoundEnd = func(ctx context.Context, ev *domain.RoundEvent) {
			for _, fn := range ends {
				fn(ctx, ev)
			}
		}
	}
	if len(dones) > 0 {
		out.OnProcessDone = func(ctx context.Context, ev *domain.ProcessEvent) {
			for _, fn := range dones {
				fn(ctx, ev)
			}
		}
	}
	return out
}
