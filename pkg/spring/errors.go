package spring

import "errors"

var (
	ErrInvalidParameter  = errors.New("expected numbers for stiffness and dampening")
	ErrInvalidValueShape = errors.New("expected value to be a scalar, vec2, vec3, or vec4")
	ErrShapeMismatch     = errors.New("destination value type must match initial value type")
	ErrInvalidStepCount  = errors.New("expected a positive integer step count")
)
