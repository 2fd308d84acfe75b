package spring

import "fmt"

// ScalarSpring is the single-number form of Spring. It avoids the vector
// buffer and lets callers advance or preview several steps at once.
type ScalarSpring struct {
	stiffness   float64
	dampening   float64
	precision   float64 // squared
	value       float64
	lastValue   float64
	destination float64
}

type ScalarOption func(*ScalarSpring)

// WithLastValue seeds the previous position, giving the spring an initial
// velocity of value-last.
func WithLastValue(last float64) ScalarOption {
	return func(s *ScalarSpring) { s.lastValue = last }
}

func WithScalarPrecision(p float64) ScalarOption {
	return func(s *ScalarSpring) { s.precision = p * p }
}

func NewScalar(stiffness, dampening, value float64, opts ...ScalarOption) (*ScalarSpring, error) {
	if err := checkParams(stiffness, dampening); err != nil {
		return nil, err
	}
	if !isFinite(value) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidValueShape, value)
	}
	s := &ScalarSpring{
		stiffness:   stiffness,
		dampening:   dampening,
		precision:   Epsilon,
		value:       value,
		lastValue:   value,
		destination: value,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ScalarSpring) Value() float64       { return s.value }
func (s *ScalarSpring) LastValue() float64   { return s.lastValue }
func (s *ScalarSpring) Destination() float64 { return s.destination }

// UpdateValue retargets the spring; with animate false it jumps there.
func (s *ScalarSpring) UpdateValue(v float64, animate bool) {
	s.destination = v
	if !animate {
		s.value = v
		s.lastValue = v
	}
}

func (s *ScalarSpring) IsAtDestination() bool {
	return scalarSettled(s.value, s.lastValue, s.destination, s.precision)
}

func (s *ScalarSpring) IsWithin(threshold float64) bool {
	return scalarSettled(s.value, s.lastValue, s.destination, threshold*threshold)
}

func scalarSettled(value, last, dest, thresholdSq float64) bool {
	d, v := dest-value, value-last
	return d*d <= thresholdSq && v*v <= thresholdSq
}

// Tick runs steps updates and returns the resulting position. The spring's
// state is only written back when commit is true.
func (s *ScalarSpring) Tick(steps int, commit bool) (float64, error) {
	if steps < 1 {
		return s.value, fmt.Errorf("%w: got %d", ErrInvalidStepCount, steps)
	}

	value, last := s.value, s.lastValue
	for range steps {
		velocity := value - last
		acceleration := (s.destination-value)*s.stiffness + velocity*-s.dampening
		next := value + (velocity + acceleration)
		last, value = value, next
		if scalarSettled(value, last, s.destination, s.precision) {
			value, last = s.destination, s.destination
		}
	}

	if commit {
		s.value, s.lastValue = value, last
	}
	return value, nil
}
