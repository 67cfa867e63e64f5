package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyExists      = errors.New("already exists")
	ErrAlreadyShared      = errors.New("already shared")
	ErrInvalidAction      = errors.New("invalid action")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrRemoteFailure marks a failed boundary call to one of the backing
	// stores. The sync engine absorbs it and retries on the next cycle; it
	// is never surfaced as a hard failure to the original caller.
	ErrRemoteFailure = errors.New("remote store failure")
)
