// Package sync implements the push/pull engine that reconciles the local
// store with the remote Focal service.
//
// The service is an event-loop: all network and store work runs on a
// single goroutine fed by a request channel, so overlapping-operation
// races are prevented with plain boolean guards instead of locks around
// the sync logic itself. Mutation call sites publish typed events on the
// bus; the service reacts by attempting an immediate push, falling back
// to the durable offline queue when the push cannot succeed.
//
// Ordering invariant: projects are pushed and pulled before sessions.
// Sessions reference projects by local id, and the service's id map must
// hold the project's server-assigned id before a session referencing it
// can be written remotely.
//
// Failure model:
//   - offline or failed push: change is queued with exponential backoff
//   - exhausted retries: change is dead-lettered and announced on the bus
//   - conflict: resolved silently by last-write-wins, never an error
//
// Errors never propagate to the mutation call site; the UI observes sync
// health only through Status().
package sync
