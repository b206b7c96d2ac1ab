// Package services groups the wrappers around external tools the pipeline
// shells out to: ytdlp for media retrieval, ffmpeg for audio extraction, and
// whisper for transcription. Each wrapper accepts a command runner seam so
// tests can stub the binary.
package services
