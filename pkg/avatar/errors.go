package avatar

import "errors"

var (
	// ErrDisposed is returned when an avatar is used after Dispose.
	ErrDisposed = errors.New("avatar disposed")

	// ErrAlreadyRunning is returned when Run is called on a running avatar.
	ErrAlreadyRunning = errors.New("avatar already running")
)
