package animator

import "errors"

var (
	ErrSpringNotFound  = errors.New("spring not found")
	ErrDuplicateName   = errors.New("spring name already in use")
	ErrInvalidInterval = errors.New("frame interval must be positive")
)
