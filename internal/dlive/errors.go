package dlive

// APIError reports an unexpected GraphQL exchange: a non-2xx status, an
// undecodable body, an errors array in the envelope, or a missing or
// unusable broadcast payload.
type APIError struct {
	Message    string
	StatusCode int // 0 when the exchange never produced an HTTP status
}

func (e *APIError) Error() string {
	return e.Message
}
