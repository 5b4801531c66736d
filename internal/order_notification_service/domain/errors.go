package domain

import "errors"

var (
	ErrMalformedChange = errors.New("malformed change notification")
	ErrIgnoredTable    = errors.New("change notification for unrelated table")
	ErrNotNotifiable   = errors.New("change does not require a notification")
)
