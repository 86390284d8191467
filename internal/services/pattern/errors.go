package pattern

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is matched by every validation failure.
var ErrInvalidRequest = errors.New("invalid pattern request")

// ValidationError describes why a request was rejected.
// Step is the 1-based index of the offending color step, or 0 for request-level problems.
type ValidationError struct {
	Step    int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("color step %d: %s", e.Step, e.Message)
	}
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidRequest) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
