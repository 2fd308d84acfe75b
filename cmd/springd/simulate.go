package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zeusync/springd/internal/animator"
)

// runSimulation steps a until every spring settles or maxFrames is reached,
// writing one tab-separated line per spring per frame. It returns the
// number of frames stepped.
func runSimulation(a *animator.Animator, maxFrames int, w io.Writer) int {
	fmt.Fprintln(w, "frame\tspring\tvalue\tsettled")
	frames := 0
	for frames < maxFrames && !a.Settled() {
		frame := a.Step()
		frames++
		for _, s := range frame.Samples {
			name := s.Name
			if name == "" {
				name = s.ID.String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", frame.Seq, name, formatComponents(s.Value.Components(nil)), s.Settled)
		}
	}
	return frames
}

func formatComponents(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', 10, 64)
	}
	return strings.Join(parts, ",")
}
