// Package config loads and normalizes the streaming engine settings.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed settings.schema.json
var schemaJSON string

// Settings holds the tunables of the streaming engine.
type Settings struct {
	ViewDistance          int `yaml:"view_distance"`     // in chunks
	HysteresisMargin      int `yaml:"hysteresis_margin"` // extra chunks kept before pruning
	MaxChunksPerFrame     int `yaml:"max_chunks_per_frame"`
	MaxMeshesPerFrame     int `yaml:"max_meshes_per_frame"`
	MaxUploadsPerFrame    int `yaml:"max_uploads_per_frame"`
	MaxVegetationPerFrame int `yaml:"max_vegetation_per_frame"`
	MaxPendingTasks       int `yaml:"max_pending_tasks"`
	Workers               int `yaml:"workers"` // 0 picks NumCPU-1

	VegetationEnabled bool    `yaml:"vegetation_enabled"`
	VegetationDensity float64 `yaml:"vegetation_density"`

	SafeMode bool `yaml:"safe_mode"`
	Strict   bool `yaml:"strict"`

	Terrain         string `yaml:"terrain"` // noise, density or flat
	Seed            int64  `yaml:"seed"`
	SeaLevel        int    `yaml:"sea_level"`
	JournalCapacity int    `yaml:"journal_capacity"`
}

// Range is an inclusive bound used to clamp user-tunable integers.
type Range struct {
	Min, Max int
}

// Clamp limits v to the range.
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

var (
	ViewDistanceRange       = Range{1, 32}
	HysteresisRange         = Range{0, 8}
	ChunksPerFrameRange     = Range{1, 64}
	MeshesPerFrameRange     = Range{1, 64}
	UploadsPerFrameRange    = Range{1, 256}
	VegetationPerFrameRange = Range{1, 64}
	PendingTasksRange       = Range{16, 65536}
	WorkersRange            = Range{0, 64}
	SeaLevelRange           = Range{1, 62}
	JournalCapacityRange    = Range{0, 65536}
)

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		ViewDistance:          8,
		HysteresisMargin:      2,
		MaxChunksPerFrame:     4,
		MaxMeshesPerFrame:     4,
		MaxUploadsPerFrame:    8,
		MaxVegetationPerFrame: 2,
		MaxPendingTasks:       256,
		Workers:               0,
		VegetationEnabled:     true,
		VegetationDensity:     0.35,
		Terrain:               "noise",
		Seed:                  1337,
		SeaLevel:              24,
		JournalCapacity:       512,
	}
}

// Normalize clamps every field into its valid range.
func (s *Settings) Normalize() {
	s.ViewDistance = ViewDistanceRange.Clamp(s.ViewDistance)
	s.HysteresisMargin = HysteresisRange.Clamp(s.HysteresisMargin)
	s.MaxChunksPerFrame = ChunksPerFrameRange.Clamp(s.MaxChunksPerFrame)
	s.MaxMeshesPerFrame = MeshesPerFrameRange.Clamp(s.MaxMeshesPerFrame)
	s.MaxUploadsPerFrame = UploadsPerFrameRange.Clamp(s.MaxUploadsPerFrame)
	s.MaxVegetationPerFrame = VegetationPerFrameRange.Clamp(s.MaxVegetationPerFrame)
	s.MaxPendingTasks = PendingTasksRange.Clamp(s.MaxPendingTasks)
	s.Workers = WorkersRange.Clamp(s.Workers)
	s.VegetationDensity = ClampDensity(s.VegetationDensity)
	s.SeaLevel = SeaLevelRange.Clamp(s.SeaLevel)
	s.JournalCapacity = JournalCapacityRange.Clamp(s.JournalCapacity)
	if s.Terrain == "" {
		s.Terrain = "noise"
	}
}

// ClampDensity limits a vegetation density to 0..1.
func ClampDensity(d float64) float64 {
	if d < 0 || d != d {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// EffectiveWorkers resolves Workers=0 to max(NumCPU-1, 1).
func (s Settings) EffectiveWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads settings from a YAML file.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "read settings")
	}
	s, err := Parse(raw)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "%s", path)
	}
	return s, nil
}

// Parse decodes YAML on top of the defaults, validates it against the
// settings schema and normalizes the result.
func Parse(raw []byte) (Settings, error) {
	s := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return s, nil
	}
	if err := validate(raw); err != nil {
		return Settings{}, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, errors.Wrap(err, "settings yaml")
	}
	s.Normalize()
	return s, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("settings.schema.json", schemaJSON)
		if schemaErr != nil {
			schemaErr = errors.Wrap(schemaErr, "compile settings schema")
		}
	})
	return compiledSchema, schemaErr
}

// validate checks the document shape. YAML is re-encoded as JSON so the
// validator sees JSON numbers.
func validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "settings yaml")
	}
	if doc == nil {
		return nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "settings to json")
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(err, "settings json")
	}

	sch, err := schema()
	if err != nil {
		return err
	}
	if err := sch.Validate(v); err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	return nil
}
