package spring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Shape describes the public form of a spring value. It is fixed when a
// spring is created and every destination must carry the same shape.
type Shape uint8

const (
	ShapeInvalid Shape = iota
	ShapeScalar
	ShapeVec1
	ShapeVec2
	ShapeVec3
	ShapeVec4
)

// Components returns how many of the four internal slots the shape uses.
func (s Shape) Components() int {
	switch s {
	case ShapeScalar, ShapeVec1:
		return 1
	case ShapeVec2:
		return 2
	case ShapeVec3:
		return 3
	case ShapeVec4:
		return 4
	default:
		return 0
	}
}

func (s Shape) Valid() bool { return s != ShapeInvalid && s <= ShapeVec4 }

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeVec1:
		return "vec1"
	case ShapeVec2:
		return "vec2"
	case ShapeVec3:
		return "vec3"
	case ShapeVec4:
		return "vec4"
	default:
		return "invalid"
	}
}

// vec4 is the fixed working buffer every spring computes over. Slots past
// the shape's component count stay zero.
type vec4 [4]float64

func (v vec4) sub(u vec4) vec4 {
	return vec4{v[0] - u[0], v[1] - u[1], v[2] - u[2], v[3] - u[3]}
}

func (v vec4) distSq(u vec4) float64 {
	d := v.sub(u)
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2] + d[3]*d[3]
}

// Value is a scalar or a vector of one to four components.
// The zero Value is invalid.
type Value struct {
	shape Shape
	v     vec4
}

// Scalar returns a plain number value.
func Scalar(x float64) Value {
	return Value{shape: ShapeScalar, v: vec4{x}}
}

// Vector returns a vector value of len(xs) components. More than four or
// zero components produce an invalid value, rejected by New.
func Vector(xs ...float64) Value {
	if len(xs) == 0 || len(xs) > 4 {
		return Value{shape: ShapeInvalid}
	}
	var out Value
	out.shape = ShapeVec1 + Shape(len(xs)-1)
	copy(out.v[:], xs)
	return out
}

func Vec2(x, y float64) Value       { return Value{shape: ShapeVec2, v: vec4{x, y}} }
func Vec3(x, y, z float64) Value    { return Value{shape: ShapeVec3, v: vec4{x, y, z}} }
func Vec4(x, y, z, w float64) Value { return Value{shape: ShapeVec4, v: vec4{x, y, z, w}} }

func (v Value) Shape() Shape   { return v.shape }
func (v Value) IsScalar() bool { return v.shape == ShapeScalar }
func (v Value) Len() int       { return v.shape.Components() }

// Float returns the first component. For scalars this is the value itself.
func (v Value) Float() float64 { return v.v[0] }

// At returns component i. It panics when i is outside [0, Len()).
func (v Value) At(i int) float64 {
	if i < 0 || i >= v.Len() {
		panic(fmt.Sprintf("spring: component index %d out of range for %s", i, v.shape))
	}
	return v.v[i]
}

// Components copies the used components into out and returns it. A new
// slice is allocated only when out is too short.
func (v Value) Components(out []float64) []float64 {
	n := v.Len()
	if cap(out) < n {
		out = make([]float64, n)
	}
	out = out[:n]
	copy(out, v.v[:n])
	return out
}

// Equal reports bit-exact equality of shape and components.
func (v Value) Equal(o Value) bool {
	if v.shape != o.shape {
		return false
	}
	for i := range v.v {
		if math.Float64bits(v.v[i]) != math.Float64bits(o.v[i]) {
			return false
		}
	}
	return true
}

func (v Value) finite() bool {
	for _, x := range v.v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if v.shape == ShapeScalar {
		return fmt.Sprintf("%g", v.v[0])
	}
	return fmt.Sprintf("%s%v", v.shape, v.v[:v.Len()])
}

// MarshalJSON encodes scalars as bare numbers and vectors as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.shape == ShapeScalar:
		return json.Marshal(v.v[0])
	case v.shape.Valid():
		return json.Marshal(v.v[:v.Len()])
	default:
		return nil, ErrInvalidValueShape
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var xs []float64
		if err := json.Unmarshal(data, &xs); err != nil {
			return err
		}
		out := Vector(xs...)
		if !out.shape.Valid() {
			return fmt.Errorf("%w: got %d components", ErrInvalidValueShape, len(xs))
		}
		*v = out
		return nil
	}
	var x float64
	if err := json.Unmarshal(data, &x); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValueShape, err)
	}
	*v = Scalar(x)
	return nil
}
