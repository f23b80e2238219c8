/*
Package scheduler runs processes stored as parallel groups in a tuple space.

A process channel holds zero or more Par values. Each Round consolidates the
groups queued on a channel, wakes waiting processes whose channel now holds a
value, drains the runnable ones, executes them on a bounded worker pool and
writes everything back as a single group before notifying observers.

The scheduler owns no background goroutines. Callers drive it one round at a
time, or with RunUntilQuiescent, and decide their own timeout policy.

# Usage

	sched := scheduler.New(space,
		scheduler.WithChannels(domain.NewName(2, "procs")),
		scheduler.WithWorkers(4),
	)
	summary, err := sched.RunUntilQuiescent(ctx, 0)
*/
package scheduler
