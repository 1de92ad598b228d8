package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSpec     = errors.New("invalid job spec")
	ErrProviderFailure = errors.New("provider failure")
	ErrNoImage         = errors.New("no image reference in response")
)
