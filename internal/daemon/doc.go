// Package daemon hosts the long-running scribe services: the HTTP API, the
// conversion pipeline, and the single-instance lock. It wires submissions
// into the pipeline and exposes job state over JSON and server-sent events.
package daemon
