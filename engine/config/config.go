// Package config loads the player-side renderer settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	// Window starting width, if applicable.
	Width int `toml:"width"`
	// Window starting height, if applicable.
	Height int `toml:"height"`
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`

	LogLevel string `toml:"log_level"`

	Renderer RendererConfig `toml:"renderer"`
}

type RendererConfig struct {
	// ShaderCacheDir is where compiled program binaries are persisted.
	// Empty disables the disk cache.
	ShaderCacheDir string `toml:"shader_cache_dir"`
	// ShaderWatchDir, when set, is watched for changed shader fragments;
	// changes flush the compiled-pass pool.
	ShaderWatchDir string `toml:"shader_watch_dir"`
	// UsePBO routes plain texture uploads through streaming pixel buffers.
	UsePBO bool `toml:"use_pbo"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cacheDir := ""
	if base, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(base, "prism", "shaders")
	}
	return &Config{
		Width:    1280,
		Height:   720,
		Name:     "Prism",
		LogLevel: "info",
		Renderer: RendererConfig{
			ShaderCacheDir: cacheDir,
			UsePBO:         true,
		},
	}
}

// Load reads path and overlays it onto the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
