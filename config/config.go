// Package config loads terrain engine settings from YAML.
//
// Fields left out of a document keep their Default values, and unknown
// keys are rejected:
//
//	layout:
//	  chunk_size: 32
//	  cells: 32
//	  max_lod: 2
//	streaming:
//	  lod_radii: [2, 4, 6]
//	  hysteresis: 4
//	surface:
//	  iso: 0
//	  thresholds: [0.3, 0.6]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/terrain/internal/wide"
	"github.com/gogpu/terrain/volume"
)

// Config is the complete engine configuration.
type Config struct {
	Engine    Engine    `yaml:"engine"`
	Layout    Layout    `yaml:"layout"`
	Streaming Streaming `yaml:"streaming"`
	Surface   Surface   `yaml:"surface"`
	Store     Store     `yaml:"store"`
}

// Engine holds process-wide settings.
type Engine struct {
	// Lanes selects the lane width: 0 (auto), 1, 4 or 8.
	Lanes int `yaml:"lanes"`
	// LogLevel is a slog level name: debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// Graph is a graph document path or a preset name.
	Graph string `yaml:"graph"`
}

// Backend returns the lane backend selected by Lanes.
func (e Engine) Backend() (wide.Backend, error) {
	return wide.ForLanes(e.Lanes)
}

// Level returns the parsed LogLevel.
func (e Engine) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}

// Layout mirrors volume.Layout.
type Layout struct {
	ChunkSize float64 `yaml:"chunk_size"`
	Cells     int     `yaml:"cells"`
	MaxLOD    uint8   `yaml:"max_lod"`
}

// Volume converts the layout for the volume package.
func (l Layout) Volume() volume.Layout {
	return volume.Layout{ChunkSize: l.ChunkSize, Cells: l.Cells, MaxLOD: l.MaxLOD}
}

// Streaming configures the chunk streamer.
type Streaming struct {
	// LODRadii[l] is the outer Chebyshev radius, in chunks, of LOD l.
	LODRadii []int `yaml:"lod_radii"`
	// VerticalRadius limits the frontier to this many chunks above and
	// below the focal chunk.
	VerticalRadius int `yaml:"vertical_radius"`
	// Hysteresis is the distance in world units the focal point must move
	// before the frontier is recomputed.
	Hysteresis float64 `yaml:"hysteresis"`
	// Workers is the worker pool size; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// QueueCapacity bounds the queued worker tasks.
	QueueCapacity int `yaml:"queue_capacity"`
	// DrainBudget is the most worker results handled per Update.
	DrainBudget int `yaml:"drain_budget"`
}

// Surface configures extraction.
type Surface struct {
	Iso        float32   `yaml:"iso"`
	Thresholds []float32 `yaml:"thresholds"`
}

// Store configures graph persistence.
type Store struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
	// CompressionLevel is the zstd level, 1 (fastest) to 4 (best).
	CompressionLevel int `yaml:"compression_level"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	l := volume.DefaultLayout()
	return Config{
		Engine: Engine{
			LogLevel: "info",
			Graph:    "hills",
		},
		Layout: Layout{ChunkSize: l.ChunkSize, Cells: l.Cells, MaxLOD: l.MaxLOD},
		Streaming: Streaming{
			LODRadii:       []int{2, 4, 6},
			VerticalRadius: 1,
			Hysteresis:     4,
			QueueCapacity:  256,
			DrainBudget:    64,
		},
		Store: Store{
			Path:             "terrain.db",
			BusyTimeout:      Duration(5 * time.Second),
			CompressionLevel: 2,
		},
	}
}

// Sentinel errors for Validate.
var (
	ErrRadii      = errors.New("config: invalid lod_radii")
	ErrThresholds = errors.New("config: invalid thresholds")
)

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := c.Engine.Backend(); err != nil {
		return fmt.Errorf("config: engine.lanes: %w", err)
	}
	if _, err := c.Engine.Level(); err != nil {
		return err
	}
	if err := c.Layout.Volume().Validate(); err != nil {
		return fmt.Errorf("config: layout: %w", err)
	}
	if err := c.Streaming.Validate(c.Layout.MaxLOD); err != nil {
		return err
	}
	if err := c.Surface.Validate(); err != nil {
		return err
	}
	if l := c.Store.CompressionLevel; l < 1 || l > 4 {
		return fmt.Errorf("config: store.compression_level %d out of range [1, 4]", l)
	}
	if c.Store.BusyTimeout < 0 {
		return errors.New("config: store.busy_timeout is negative")
	}
	return nil
}

// Validate checks the streaming settings against the layout's max LOD.
func (s Streaming) Validate(maxLOD uint8) error {
	if len(s.LODRadii) == 0 {
		return fmt.Errorf("%w: empty", ErrRadii)
	}
	if len(s.LODRadii) > int(maxLOD)+1 {
		return fmt.Errorf("%w: %d rings for max_lod %d", ErrRadii, len(s.LODRadii), maxLOD)
	}
	prev := -1
	for i, r := range s.LODRadii {
		if r <= prev {
			return fmt.Errorf("%w: radius %d at LOD %d is not above %d", ErrRadii, r, i, prev)
		}
		prev = r
	}
	if s.VerticalRadius < 0 {
		return errors.New("config: streaming.vertical_radius is negative")
	}
	if s.Hysteresis < 0 || math.IsNaN(s.Hysteresis) || math.IsInf(s.Hysteresis, 0) {
		return fmt.Errorf("config: streaming.hysteresis %v must be finite and non-negative", s.Hysteresis)
	}
	if s.Workers < 0 {
		return errors.New("config: streaming.workers is negative")
	}
	if s.QueueCapacity <= 0 {
		return errors.New("config: streaming.queue_capacity must be positive")
	}
	if s.DrainBudget <= 0 {
		return errors.New("config: streaming.drain_budget must be positive")
	}
	return nil
}

// Validate checks the isovalue and thresholds.
func (s Surface) Validate() error {
	if math.IsNaN(float64(s.Iso)) || math.IsInf(float64(s.Iso), 0) {
		return fmt.Errorf("config: surface.iso %v must be finite", s.Iso)
	}
	if len(s.Thresholds) > volume.MaxThresholds {
		return fmt.Errorf("%w: %d given, at most %d", ErrThresholds, len(s.Thresholds), volume.MaxThresholds)
	}
	for i, t := range s.Thresholds {
		if math.IsNaN(float64(t)) {
			return fmt.Errorf("%w: NaN", ErrThresholds)
		}
		if i > 0 && t < s.Thresholds[i-1] {
			return fmt.Errorf("%w: not ascending", ErrThresholds)
		}
	}
	return nil
}

// Parse decodes a YAML document over Default and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
