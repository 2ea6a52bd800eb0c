package client

import "errors"

var (
	// ErrAlreadyLaunched is returned by Launch if called more than once.
	ErrAlreadyLaunched = errors.New("client: already launched")
	// ErrNotLaunched is returned by operations that require Launch to
	// have run first.
	ErrNotLaunched = errors.New("client: not launched")
)
