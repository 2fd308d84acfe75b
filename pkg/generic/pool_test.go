package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
		WithReset(func(b *bytes.Buffer) { b.Reset() })

	buf := p.Get()
	buf.WriteString("frame")
	p.Put(buf)
	assert.Zero(t, buf.Len())

	// whatever comes back, recycled or fresh, starts empty
	assert.Zero(t, p.Get().Len())
}
