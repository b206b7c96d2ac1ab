// Package pipeline coordinates media-to-text conversion jobs.
//
// The coordinator runs each job in its own goroutine through four stages:
// download, audio extraction, transcription, and result storage. Every state
// change flows through one status path that persists the job row and then
// broadcasts a progress event, so the database and live subscribers can never
// diverge in order. Stage handlers may report intermediate progress; the
// coordinator relays at most one such update per stage and clamps it between
// the stage's checkpoints so observed progress is monotonic.
package pipeline
