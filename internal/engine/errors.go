package engine

import "errors"

// Invocation-level error taxonomy. Auth, IO, and config failures abort the
// whole invocation; remote failures are scoped to a single task and recorded
// in its Result instead of being returned from Run.
var (
	// ErrAuth covers consent denial, malformed descriptors, and permanently
	// rejected refreshes. Surfaced verbatim to the host.
	ErrAuth = errors.New("authorization failed")
	// ErrRemote marks an API call that failed after retry exhaustion.
	ErrRemote = errors.New("remote operation failed")
	// ErrIO covers local read failures and archive construction failures.
	ErrIO = errors.New("local I/O failed")
	// ErrConfig covers invalid invocation inputs, reported before any
	// network call is attempted.
	ErrConfig = errors.New("invalid configuration")
)
