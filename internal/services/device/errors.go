package device

import "errors"

var (
	// ErrUnsupportedAction is returned by QuickAction for unknown action names.
	ErrUnsupportedAction = errors.New("unsupported quick action")
	// ErrInvalidAlias is returned when an alias is blank or too long.
	ErrInvalidAlias = errors.New("invalid device alias")
	// ErrUpstream is returned when the bulb API cannot be reached or answers with a failure status.
	ErrUpstream = errors.New("bulb API request failed")
)
