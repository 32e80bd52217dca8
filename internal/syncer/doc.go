// Package syncer reconciles the local store with the backend of record.
//
// The Coordinator is a single-writer event loop. Startup, auth,
// connectivity and push signals are enqueued from any goroutine and
// processed in FIFO order by Run; coordinator state is only touched there.
//
// Pulls run off-loop and report back tagged with a generation number, so a
// pull overtaken by a sign-out or a newer pull is discarded. Drains run on
// the loop and walk the pending-action queue in FIFO order:
//
//   - success, or a conflict, resolves the action;
//   - a transient failure backs the action off and ends the pass;
//   - any other failure backs the action off and blocks later actions on
//     the same record for the rest of the pass.
//
// Backoff is counted in drain passes, not wall time. An action that fails
// MaxRetries times is dead-lettered until the user retries or discards it.
//
// Nothing crosses the async boundary as an error: outcomes are recorded in
// the store's Status.
package syncer
