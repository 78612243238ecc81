package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrRejected           = errors.New("request rejected")
	ErrLockHeld           = errors.New("lock already held")
	ErrUnknownEnvironment = errors.New("unknown environment")
)
