package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// cliConfig is the optional TOML file read with --config. Target values
// fill in whatever a show file leaves unset.
type cliConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	WorkDir     string `toml:"work_dir"`
	Parallelism int    `toml:"parallelism"`

	Target schemas.Target `toml:"target"`
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		FFmpegPath:  "ffmpeg",
		Parallelism: 2,
		Target: schemas.Target{
			Width:          1920,
			Height:         1080,
			FrameRate:      30,
			OutputKind:     schemas.OutputVideo,
			MaxBatchInputs: 15,
		},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "slidegraph", "config.toml")
}

// loadCLIConfig reads path, or the default location when path is empty.
// A missing default file is not an error.
func loadCLIConfig(path string) (*cliConfig, error) {
	cfg := defaultCLIConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path == "" {
		return &cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Target.OutputKind = schemas.OutputKind(strings.ToLower(string(cfg.Target.OutputKind)))
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("config: parallelism must be positive, got %d", cfg.Parallelism)
	}
	return &cfg, nil
}

// applyDefaults fills the zero fields of t from the configured target.
func (c *cliConfig) applyDefaults(t *schemas.Target) {
	if t.Width == 0 {
		t.Width = c.Target.Width
	}
	if t.Height == 0 {
		t.Height = c.Target.Height
	}
	if t.FrameRate == 0 {
		t.FrameRate = c.Target.FrameRate
	}
	if t.OutputKind == "" {
		t.OutputKind = c.Target.OutputKind
	}
	if t.MaxBatchInputs == 0 {
		t.MaxBatchInputs = c.Target.MaxBatchInputs
	}
}
