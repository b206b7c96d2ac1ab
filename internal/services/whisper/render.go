package whisper

import "strings"

// Render formats transcript text for the requested output format.
func Render(text, format string) string {
	if strings.EqualFold(format, "markdown") {
		return "## Transcript\n\n" + text + "\n"
	}
	return text
}

// FileName returns the artifact name for a rendered transcript.
func FileName(format string) string {
	if strings.EqualFold(format, "markdown") {
		return "transcript.md"
	}
	return "transcript.txt"
}
