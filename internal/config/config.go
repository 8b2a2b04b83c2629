package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"MarchingTerrain/internal/density"
	"MarchingTerrain/internal/render"
	"MarchingTerrain/internal/terrain"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

type Config struct {
	ChunkResolution       int     `yaml:"chunk_resolution"`
	Isolevel              float32 `yaml:"isolevel"`
	RenderDistance        int     `yaml:"render_distance"`
	VoxelScale            float32 `yaml:"voxel_scale"`
	UseParallelPopulation bool    `yaml:"use_parallel_population"`

	// Workers sizes the pool: 0 for GOMAXPROCS, -1 to run everything inline.
	Workers         int     `yaml:"workers"`
	PopulationSlabs int     `yaml:"population_slabs"`
	TickRateHz      float64 `yaml:"tick_rate_hz"`
	LogLevel        string  `yaml:"log_level"`

	Density density.Params `yaml:"density"`
}

func Default() Config {
	return Config{
		ChunkResolution:       8,
		Isolevel:              0.5,
		RenderDistance:        4,
		VoxelScale:            1,
		UseParallelPopulation: true,
		Workers:               0,
		PopulationSlabs:       4,
		TickRateHz:            30,
		LogLevel:              "info",
		Density: density.Params{
			Kind:      "terrain",
			Seed:      1337,
			Height:    0,
			Amplitude: 12,
			Frequency: 0.02,
			Octaves:   4,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Parse(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates a YAML document against the config schema and decodes it over cfg.
func Parse(b []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// Round trip through JSON so the validator sees plain JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not a JSON-compatible document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return err
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks what the schema cannot express.
func (c Config) Validate() error {
	if c.ChunkResolution <= 0 {
		return fmt.Errorf("chunk_resolution must be positive, got %d", c.ChunkResolution)
	}
	if !(c.VoxelScale > 0) {
		return fmt.Errorf("voxel_scale must be positive, got %g", c.VoxelScale)
	}
	if _, err := density.Create(c.Density); err != nil {
		return err
	}
	return nil
}

// Source builds the configured density source.
func (c Config) Source() (density.Source, error) {
	return density.Create(c.Density)
}

// StreamerOptions maps the configuration onto the terrain streamer.
func (c Config) StreamerOptions(src density.Source, sink render.Sink) terrain.Options {
	return terrain.Options{
		Resolution:         c.ChunkResolution,
		Isolevel:           c.Isolevel,
		Scale:              c.VoxelScale,
		RenderDistance:     c.RenderDistance,
		ParallelPopulation: c.UseParallelPopulation,
		PopulationSlabs:    c.PopulationSlabs,
		Workers:            c.Workers,
		Source:             src,
		Sink:               sink,
	}
}
