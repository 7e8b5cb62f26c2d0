package cloudflare

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the API rejects the bearer token. It is
// fatal to a refresh cycle and means the account needs to be reconfigured.
var ErrUnauthorized = errors.New("cloudflare: unauthorized (401), check the API token")

// RemoteError is a non-200, non-401 response from the Cloudflare API.
type RemoteError struct {
	Status int
	Reason string
	Body   string // response body excerpt
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cloudflare: HTTP %d %s: %s", e.Status, e.Reason, e.Body)
}

// UnreachableError is a transport-level failure: timeout, DNS, refused
// connection. Raw transport errors never escape the client unwrapped.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("cloudflare: unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
