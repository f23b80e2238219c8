/*
Package observability provides the notification side channel of the scheduler.

A Stream fans process events out to any number of subscribers. Its Hooks plug
into the scheduler, which fires them only after a process's terminal state has
been written back to the tuple space, so a subscriber that reads the store on
notification always finds the persisted result.
*/
package observability
