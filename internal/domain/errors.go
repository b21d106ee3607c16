package domain

import "errors"

var (
	ErrCrossedBook    = errors.New("crossed book")
	ErrMalformedEvent = errors.New("malformed event line")
)
