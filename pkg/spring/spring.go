// Package spring animates a scalar or a small vector toward a destination
// using a discrete spring-damper integrator. One Tick is one simulation
// step; the caller decides when to tick, usually once per rendered frame.
//
// A Spring is not safe for concurrent use. Distinct springs share no state.
package spring

import (
	"fmt"
	"math"
)

// Epsilon is the default squared arrival threshold (2^-52).
const Epsilon = 0x1p-52

// Spring holds one animated quantity. Values are always computed over four
// slots; slots past the shape's component count stay zero.
type Spring struct {
	shape     Shape
	stiffness float64
	dampening float64
	precision float64 // squared

	value       vec4
	lastValue   vec4
	destination vec4
}

// Option configures a Spring at construction.
type Option func(*Spring)

// WithPrecision sets the linear distance under which the spring counts as
// settled. It is squared once here and compared against squared distances.
func WithPrecision(p float64) Option {
	return func(s *Spring) { s.precision = p * p }
}

// New creates a spring at rest on initial. Its shape becomes fixed.
func New(stiffness, dampening float64, initial Value, opts ...Option) (*Spring, error) {
	if err := checkParams(stiffness, dampening); err != nil {
		return nil, err
	}
	if !initial.shape.Valid() || !initial.finite() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidValueShape, initial.shape)
	}

	s := &Spring{
		shape:       initial.shape,
		stiffness:   stiffness,
		dampening:   dampening,
		precision:   Epsilon,
		value:       initial.v,
		lastValue:   initial.v,
		destination: initial.v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func checkParams(stiffness, dampening float64) error {
	if !isFinite(stiffness) || !isFinite(dampening) {
		return fmt.Errorf("%w: stiffness=%v dampening=%v", ErrInvalidParameter, stiffness, dampening)
	}
	return nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func (s *Spring) Shape() Shape         { return s.shape }
func (s *Spring) Stiffness() float64   { return s.stiffness }
func (s *Spring) Dampening() float64   { return s.dampening }
func (s *Spring) Precision() float64   { return s.precision }
func (s *Spring) Destination() Value   { return Value{shape: s.shape, v: s.destination} }
func (s *Spring) Current() Value       { return Value{shape: s.shape, v: s.value} }
func (s *Spring) Velocity() Value      { return Value{shape: s.shape, v: s.value.sub(s.lastValue)} }
func (s *Spring) componentCount() int  { return s.shape.Components() }
func (s *Spring) wrap(v vec4) Value    { return Value{shape: s.shape, v: v} }
func (s *Spring) matches(v Value) bool { return v.shape == s.shape }

// CurrentInto copies the current components into out, allocating only if
// out is too short. Scalars write a single component.
func (s *Spring) CurrentInto(out []float64) []float64 {
	n := s.componentCount()
	if cap(out) < n {
		out = make([]float64, n)
	}
	out = out[:n]
	copy(out, s.value[:n])
	return out
}

// SetParams replaces the constructed stiffness and dampening.
func (s *Spring) SetParams(stiffness, dampening float64) error {
	if err := checkParams(stiffness, dampening); err != nil {
		return err
	}
	s.stiffness, s.dampening = stiffness, dampening
	return nil
}

// SetDestination retargets the spring. With animate false the spring jumps
// to v immediately and comes to rest there.
func (s *Spring) SetDestination(v Value, animate bool) error {
	if !s.matches(v) {
		return fmt.Errorf("%w: want %s, got %s", ErrShapeMismatch, s.shape, v.shape)
	}
	s.destination = v.v
	if !animate {
		s.value = v.v
		s.lastValue = v.v
	}
	return nil
}

// IsAtDestination reports whether both the distance to the destination and
// the last step's displacement are within the spring's precision.
func (s *Spring) IsAtDestination() bool {
	return settled(s.value, s.lastValue, s.destination, s.precision)
}

// IsWithin is IsAtDestination against a caller-supplied linear threshold.
func (s *Spring) IsWithin(threshold float64) bool {
	return settled(s.value, s.lastValue, s.destination, threshold*threshold)
}

func settled(value, last, dest vec4, thresholdSq float64) bool {
	return value.distSq(dest) <= thresholdSq && value.distSq(last) <= thresholdSq
}

// Tick advances one step with the constructed parameters.
func (s *Spring) Tick() Value {
	return s.TickWith(s.stiffness, s.dampening)
}

// TickWith advances one step with the given stiffness and dampening,
// leaving the constructed parameters untouched.
func (s *Spring) TickWith(stiffness, dampening float64) Value {
	s.value, s.lastValue = step(s.value, s.lastValue, s.destination, stiffness, dampening, s.precision)
	return s.wrap(s.value)
}

// Advance runs steps updates. With commit false the result is computed on
// copies and the spring is left as it was.
func (s *Spring) Advance(steps int, commit bool) (Value, error) {
	if steps < 1 {
		return Value{}, fmt.Errorf("%w: got %d", ErrInvalidStepCount, steps)
	}
	value, last := s.value, s.lastValue
	for range steps {
		value, last = step(value, last, s.destination, s.stiffness, s.dampening, s.precision)
	}
	if commit {
		s.value, s.lastValue = value, last
	}
	return s.wrap(value), nil
}

// Peek returns where the spring will be after steps updates.
func (s *Spring) Peek(steps int) (Value, error) {
	return s.Advance(steps, false)
}

// step is one semi-implicit Euler update. Once the result is within
// precision of dest it is snapped there exactly.
func step(value, last, dest vec4, stiffness, dampening, precisionSq float64) (vec4, vec4) {
	var next vec4
	for i := range value {
		velocity := value[i] - last[i]
		delta := dest[i] - value[i]
		acceleration := delta*stiffness + velocity*-dampening
		next[i] = value[i] + (velocity + acceleration)
	}
	if settled(next, value, dest, precisionSq) {
		return dest, dest
	}
	return next, value
}
