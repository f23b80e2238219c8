/*
Package weft is an execution engine for message-passing process calculi.

A front end compiles a program into instruction streams. Weft runs each stream
as an independent, suspendable process over a shared tuple space: processes
talk only through FIFO channels, block when a channel is empty and resume
exactly where they stopped once a value arrives.

# Concept

Pending work is itself a value. A process channel holds parallel groups of
processes, and every scheduling round drains the runnable ones, executes them
on a worker pool and writes the group back. Because suspended processes live in
the store, a serializing backend (badger, redis) can hold them between rounds
and independent drivers can share them.

# Key Features

  - Interchangeable tuple spaces: flat memory, hierarchical path tree, badger and redis.
  - Resumable VM with its own stack, locals and barrier state per process.
  - Explicit rounds with no background goroutines; quiescence is testable.
  - Notifications after persistence, prometheus metrics and slog logging.

# Usage

	engine, err := weft.New(weft.WithWorkers(4))
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	img, err := image.LoadFile("adder.yaml")
	if err != nil {
		log.Fatal(err)
	}
	if err := engine.Deposit(ctx, img); err != nil {
		log.Fatal(err)
	}
	summary, err := engine.Run(ctx)
*/
package weft
