/*
Package region serializes work on store regions.

A region is any key naming a slice of the tuple space, typically a process
channel. Independent drivers may call scheduling rounds concurrently as long as
they touch distinct regions; the Manager enforces that with one in-process
mutex per active key and, optionally, a distributed lock so drivers in other
processes sharing the same store also take turns.
*/
package region
