package client

import "fmt"

// StatusError is returned when an upstream replies with a non-200 status.
// Retry logic inspects the code: 4xx means the token is simply not there and
// retrying is pointless, 5xx is transient.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream request to %s failed with status %d: %s", e.URL, e.Code, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= 500
}
