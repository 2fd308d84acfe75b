package injector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/springd/internal/config"
	"github.com/zeusync/springd/pkg/spring"
)

func TestInitializeApp(t *testing.T) {
	cfg, err := config.LoadYAML(strings.NewReader(`
server:
  frame_rate: 50
springs:
  - name: fade
    preset: snappy
    initial: 0
    destination: 1
  - name: pos
    preset: gentle
    initial: [0, 0, 0]
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, app.Animator.Len())

	id, ok := app.Animator.Lookup("fade")
	require.True(t, ok)
	sample, err := app.Animator.Get(id)
	require.NoError(t, err)
	assert.True(t, sample.Destination.Equal(spring.Scalar(1)))
	assert.False(t, sample.Settled)

	sc := ProvideServerConfig(cfg)
	assert.Equal(t, 20*time.Millisecond, sc.FrameInterval)
	assert.Contains(t, sc.Presets, "wobbly")
}

func TestProvideAnimatorUnknownPreset(t *testing.T) {
	cfg := config.Default()
	cfg.Springs = []config.SpringConfig{{Name: "a", Preset: "missing", Initial: []float64{1}}}
	_, err := ProvideAnimator(cfg, nil, nil)
	require.ErrorIs(t, err, config.ErrUnknownPreset)
}
