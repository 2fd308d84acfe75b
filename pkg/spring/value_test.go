package spring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorShapes(t *testing.T) {
	assert.Equal(t, ShapeVec1, Vector(1).Shape())
	assert.Equal(t, ShapeVec2, Vector(1, 2).Shape())
	assert.Equal(t, ShapeVec3, Vector(1, 2, 3).Shape())
	assert.Equal(t, ShapeVec4, Vector(1, 2, 3, 4).Shape())
	assert.Equal(t, ShapeInvalid, Vector(1, 2, 3, 4, 5).Shape())
	assert.Equal(t, 1, ShapeScalar.Components())
	assert.Equal(t, "vec3", ShapeVec3.String())
}

func TestValueAtPanicsOutOfRange(t *testing.T) {
	v := Vec2(1, 2)
	assert.Equal(t, 2.0, v.At(1))
	assert.Panics(t, func() { v.At(2) })
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal(Scalar(2.5))
	require.NoError(t, err)
	assert.JSONEq(t, `2.5`, string(data))

	data, err = json.Marshal(Vec3(1, 2, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(data))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`7`), &v))
	assert.True(t, v.Equal(Scalar(7)))

	require.NoError(t, json.Unmarshal([]byte(` [1, 2]`), &v))
	assert.True(t, v.Equal(Vec2(1, 2)))

	require.ErrorIs(t, json.Unmarshal([]byte(`[1,2,3,4,5]`), &v), ErrInvalidValueShape)
	require.ErrorIs(t, json.Unmarshal([]byte(`"x"`), &v), ErrInvalidValueShape)

	_, err = json.Marshal(Value{})
	require.Error(t, err)
}
