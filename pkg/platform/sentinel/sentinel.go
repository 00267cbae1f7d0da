// Package sentinel names the facts spamgate's stores report. Stores return
// them, possibly wrapped; services translate them into domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound: the option, user or contact message was never stored.
	// The resolver treats a missing option as unset, not as a failure.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a user name, email or message ID is already taken.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the backing store could not be reached or is not set
	// up. Option reads that fail this way fall back to defaults unless the
	// option is required.
	ErrUnavailable = errors.New("unavailable")
)
