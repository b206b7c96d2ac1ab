package ytdlp

// Error is a download failure with a message suitable for job records.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
