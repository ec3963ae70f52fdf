package chat

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the pull client and the workflow.
var (
	// ErrNotFound: the target user or conversation is gone. The server's
	// own message is shown to the user verbatim when present.
	ErrNotFound = errors.New("not found")
	// ErrConflict: blocked locally before submission (duplicate invitee,
	// missing required input).
	ErrConflict = errors.New("conflict")
	// ErrTransport: network or server failure. The caller falls back to a
	// generic notice; nothing is retried automatically.
	ErrTransport = errors.New("transport failure")
)

// RemoteError is a failed server operation carrying the server-provided
// message. It unwraps to one of the sentinel kinds above.
type RemoteError struct {
	Kind    error
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server responded %d: %v", e.Status, e.Kind)
}

func (e *RemoteError) Unwrap() error { return e.Kind }

// serverMessage extracts the server's user-facing message from err, or
// returns fallback when there is none to show.
func serverMessage(err error, fallback string) string {
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
