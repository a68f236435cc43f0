package download

// ValidationError reports unusable caller input, such as an out-of-range
// quality selection.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
