package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol classifies every transport failure: network errors,
	// unexpected HTTP status, malformed framing and server-reported errors.
	ErrProtocol = errors.New("protocol error")
	// ErrRefNotFound is returned when the requested branch is not advertised.
	ErrRefNotFound = errors.New("ref not found")
)

// RemoteError is an error message sent by the server, either on the
// sideband error channel or as an "ERR" pkt-line.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s", e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrProtocol
}
