package remote

import "errors"

// Errors returned by remote store operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, remote.ErrUnavailable) {
//	    // network problem, retry later
//	}
//
// The sync coordinator deliberately treats both conditions the same way
// (leave the queue entry eligible for retry); the distinction exists for
// logging and diagnostics only.
var (
	// ErrUnavailable is returned when the remote store cannot be reached
	// or responds with a server-side failure.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrRejected is returned when the remote store received the request
	// and refused it (validation or auth failure).
	ErrRejected = errors.New("remote store rejected operation")
)
