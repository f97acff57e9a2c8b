package webhook

import "fmt"

// TransportError reports that no HTTP response was obtained.
type TransportError struct {
	Route string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webhook %s: transport: %v", e.Route, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NetworkError reports a non-2xx response.
type NetworkError struct {
	Route  string
	Status int
	Body   string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("webhook %s: HTTP error! status: %d", e.Route, e.Status)
}

// DecodeError reports a 2xx response whose body is not valid JSON.
type DecodeError struct {
	Route string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("webhook %s: decode response: %v", e.Route, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
