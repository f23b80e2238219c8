/*
Package domain contains the core models of the weft execution engine.

It defines the values that flow through tuple-space channels, the channel name
convention, and the process state machine. This package is kept pure and free of
storage or transport concerns, following Hexagonal Architecture principles.

# Key Entities

  - Value: a closed union of scalars (Int, Bool, Text, Name, Nil), collections
    (List, Tuple, Map) and Par, the parallel group holding pending processes.
  - Name: a channel reference of the shape "@<kind>:<label>".
  - Process: an identity, a state (Waiting, Runnable, Completed, Failed) and an
    exclusively owned Machine that survives suspensions.
  - ProcessEvent: the notification emitted on every terminal transition.
*/
package domain
