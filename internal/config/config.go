package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/pkg/spring"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config describes a springd process: where it listens, how fast the frame
// clock runs, named spring presets and the springs created at startup.
type Config struct {
	Server  ServerConfig      `json:"server" yaml:"server"`
	Log     LogConfig         `json:"log" yaml:"log"`
	Presets map[string]Preset `json:"presets,omitempty" yaml:"presets,omitempty"`
	Springs []SpringConfig    `json:"springs,omitempty" yaml:"springs,omitempty"`
}

type ServerConfig struct {
	ListenAddr   string        `json:"listen_addr" yaml:"listen_addr"`
	FrameRate    int           `json:"frame_rate" yaml:"frame_rate"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	MaxClients   int           `json:"max_clients,omitempty" yaml:"max_clients,omitempty"`
}

type LogConfig struct {
	Level log.Level `json:"level" yaml:"level"`
}

// Preset is a reusable set of spring parameters. Precision zero means the
// library default.
type Preset struct {
	Stiffness float64 `json:"stiffness" yaml:"stiffness"`
	Dampening float64 `json:"dampening" yaml:"dampening"`
	Precision float64 `json:"precision,omitempty" yaml:"precision,omitempty"`
}

// SpringConfig declares a spring created at startup. Initial and
// Destination are a bare number for scalars or a list of 1 to 4 numbers.
type SpringConfig struct {
	Name        string    `json:"name" yaml:"name"`
	Preset      string    `json:"preset" yaml:"preset"`
	Initial     []float64 `json:"-" yaml:"-"`
	Destination []float64 `json:"-" yaml:"-"`
	Scalar      bool      `json:"-" yaml:"-"`

	RawInitial     any `json:"initial" yaml:"initial"`
	RawDestination any `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			FrameRate:    60,
			WriteTimeout: 2 * time.Second,
			MaxClients:   256,
		},
		Log: LogConfig{Level: log.LevelInfo},
		Presets: map[string]Preset{
			"gentle": {Stiffness: 0.02, Dampening: 0.25},
			"snappy": {Stiffness: 0.1, Dampening: 0.5},
			"wobbly": {Stiffness: 0.15, Dampening: 0.08},
		},
	}
}

// LoadYAML decodes r over the defaults.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}
	return c, c.normalize()
}

// LoadJSON decodes r over the defaults.
func LoadJSON(r io.Reader) (*Config, error) {
	c := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode json config: %w", err)
	}
	return c, c.normalize()
}

// LoadFile picks the decoder from the file extension; anything that is not
// .json is read as YAML.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return LoadYAML(f)
}

// Preset looks up a named preset.
func (c *Config) Preset(name string) (Preset, error) {
	p, ok := c.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// FrameInterval is the period of the frame clock.
func (c *Config) FrameInterval() time.Duration {
	if c.Server.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Server.FrameRate)
}

// Validate checks every field that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.FrameRate <= 0 || c.Server.FrameRate > 1000 {
		errs = append(errs, fmt.Errorf("server.frame_rate must be in [1, 1000], got %d", c.Server.FrameRate))
	}
	for name, p := range c.Presets {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("preset %q: %w", name, err))
		}
	}
	seen := make(map[string]struct{}, len(c.Springs))
	for i, s := range c.Springs {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("springs[%d]: name is required", i))
		} else if _, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("springs[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = struct{}{}
		if _, ok := c.Presets[s.Preset]; !ok {
			errs = append(errs, fmt.Errorf("springs[%d]: %w: %q", i, ErrUnknownPreset, s.Preset))
		}
		if n := len(s.Initial); n < 1 || n > 4 {
			errs = append(errs, fmt.Errorf("springs[%d]: %w", i, spring.ErrInvalidValueShape))
		}
		if s.Destination != nil && (len(s.Destination) != len(s.Initial)) {
			errs = append(errs, fmt.Errorf("springs[%d]: %w", i, spring.ErrShapeMismatch))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (p Preset) Validate() error {
	if !finite(p.Stiffness) || !finite(p.Dampening) {
		return spring.ErrInvalidParameter
	}
	if p.Precision < 0 || !finite(p.Precision) {
		return fmt.Errorf("precision must be a non-negative number, got %v", p.Precision)
	}
	return nil
}

// Options converts the preset into spring construction options.
func (p Preset) Options() []spring.Option {
	if p.Precision == 0 {
		return nil
	}
	return []spring.Option{spring.WithPrecision(p.Precision)}
}

// InitialValue returns the declared starting value with its shape.
func (s SpringConfig) InitialValue() spring.Value { return s.value(s.Initial) }

// DestinationValue returns the declared destination and whether one was set.
func (s SpringConfig) DestinationValue() (spring.Value, bool) {
	if s.Destination == nil {
		return spring.Value{}, false
	}
	return s.value(s.Destination), true
}

func (s SpringConfig) value(xs []float64) spring.Value {
	if s.Scalar && len(xs) == 1 {
		return spring.Scalar(xs[0])
	}
	return spring.Vector(xs...)
}

// normalize resolves the loosely typed initial/destination fields: a bare
// number makes the spring scalar, a list makes it a vector.
func (c *Config) normalize() error {
	for i := range c.Springs {
		s := &c.Springs[i]
		initial, scalar, err := toComponents(s.RawInitial)
		if err != nil {
			return fmt.Errorf("springs[%d].initial: %w", i, err)
		}
		s.Initial, s.Scalar = initial, scalar
		if s.RawDestination != nil {
			dest, destScalar, err := toComponents(s.RawDestination)
			if err != nil {
				return fmt.Errorf("springs[%d].destination: %w", i, err)
			}
			if destScalar != scalar {
				return fmt.Errorf("springs[%d].destination: %w", i, spring.ErrShapeMismatch)
			}
			s.Destination = dest
		}
	}
	return nil
}

func toComponents(raw any) ([]float64, bool, error) {
	switch v := raw.(type) {
	case nil:
		return []float64{0}, true, nil
	case []any:
		out := make([]float64, len(v))
		for i, x := range v {
			f, ok := toFloat(x)
			if !ok {
				return nil, false, fmt.Errorf("component %d is not a number", i)
			}
			out[i] = f
		}
		return out, false, nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, false, spring.ErrInvalidValueShape
		}
		return []float64{f}, true, nil
	}
}

func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
