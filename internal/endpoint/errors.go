package endpoint

import "errors"

// Domain errors for the endpoint package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, endpoint.ErrEndpointNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEndpointNotFound is returned when an endpoint ID does not exist.
	ErrEndpointNotFound = errors.New("endpoint: not found")

	// ErrEndpointExists is returned when creating an endpoint with an ID that already exists.
	ErrEndpointExists = errors.New("endpoint: already exists")

	// ErrInvalidEndpoint is returned when endpoint validation fails.
	ErrInvalidEndpoint = errors.New("endpoint: invalid")

	// ErrInvalidName is returned when an endpoint name is empty or too long.
	ErrInvalidName = errors.New("endpoint: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("endpoint: invalid slug")

	// ErrInvalidActionID is returned when an action id is not a decimal string.
	ErrInvalidActionID = errors.New("endpoint: invalid action id")

	// ErrInvalidState is returned when state validation fails.
	ErrInvalidState = errors.New("endpoint: invalid state")
)
