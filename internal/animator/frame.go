package animator

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/springd/pkg/sequence"
	"github.com/zeusync/springd/pkg/spring"
)

// Sample is one spring's state within a frame.
type Sample struct {
	ID          ID           `json:"id"`
	Name        string       `json:"name,omitempty"`
	Value       spring.Value `json:"value"`
	Destination spring.Value `json:"destination"`
	Settled     bool         `json:"settled"`
}

// Frame is the state of every spring after one step. Checksum covers the
// samples but not Seq, so two frames with identical state hash alike and
// consumers can skip re-sending them.
type Frame struct {
	Seq      uint64   `json:"seq"`
	Samples  []Sample `json:"springs"`
	Checksum uint64   `json:"checksum"`
}

func newFrame(seq uint64, samples []Sample) Frame {
	if samples == nil {
		samples = []Sample{}
	}
	return Frame{Seq: seq, Samples: samples, Checksum: checksum(samples)}
}

// Settled reports whether every sample is at its destination.
func (f Frame) Settled() bool {
	return sequence.From(f.Samples).All(func(s Sample) bool { return s.Settled })
}

func checksum(samples []Sample) uint64 {
	d := xxhash.New()
	var buf [8]byte
	components := make([]float64, 0, 4)
	for _, s := range samples {
		_, _ = d.Write(s.ID[:])
		_, _ = d.WriteString(s.Name)
		for _, v := range [...]spring.Value{s.Value, s.Destination} {
			components = v.Components(components[:0])
			for _, x := range components {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
				_, _ = d.Write(buf[:])
			}
		}
		if s.Settled {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
	}
	return d.Sum64()
}
