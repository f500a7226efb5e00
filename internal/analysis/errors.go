package analysis

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when an analysis is already in flight.
var ErrBusy = errors.New("analysis already in progress")

// ServerError reports a non-success HTTP status from the analysis service.
type ServerError struct {
	StatusCode int
	Status     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server responded with %d", e.StatusCode)
}

// NetworkError reports a transport failure reaching the analysis service.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
