/*
Package ports defines the driven ports (interfaces) for the weft engine.

These interfaces decouple the scheduler and the execution units from backend
implementations, so the same program runs unchanged on any tuple space.

# Key Interfaces

  - TupleSpace: FIFO-per-channel storage with kind validation (memory, pathtree, badger, redis).
  - Scoped: optional prefix listing offered by hierarchical backends.
  - DistributedLocker: cross-instance exclusion for channel regions.
*/
package ports
