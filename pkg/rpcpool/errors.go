package rpcpool

import "fmt"

// EndpointError tags a failed remote call with the endpoint that served it,
// so the failure can be charged to that endpoint exactly.
type EndpointError struct {
	Endpoint *Endpoint
	Err      error
}

func (e *EndpointError) Error() string {
	if e.Endpoint == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint.Name, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}
