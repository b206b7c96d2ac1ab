// Package store persists conversion jobs and their result files in SQLite.
//
// The job row is the durable source of truth for a job's lifecycle; all
// mutations flow through UpdateJob, which applies partial updates so the
// pipeline coordinator never clobbers fields it did not load. Result files
// are written once on successful completion and immutable afterward.
package store
