// Package broadcast fans job progress events out to live subscribers.
//
// The hub tracks subscriptions per job id. Publishing never blocks the
// pipeline: each subscription owns an unbounded queue drained by its
// consumer. Closing semantics guarantee a consumer blocked in Next wakes up
// when the coordinator tears the job's subscriptions down.
package broadcast
