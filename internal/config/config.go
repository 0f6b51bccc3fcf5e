// Package config loads and validates the scanner's run configuration,
// following the teacher's config.Load pattern of resolving defaults under a
// per-user config directory and returning a single immutable Config value
// that is then passed by value into the scan entry point (spec §5: "no
// global state is required").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scanforge/sourceguard/internal/scanerr"
)

const (
	DefaultConfigDir  = ".sourceguard"
	DefaultLogFile    = "sourceguard.log"
	DefaultThreshold  = 0.7
	DefaultShortLiteralThreshold = 15
	DefaultWorkers    = 0 // 0 means "use GOMAXPROCS"
	DefaultPerFileTimeout = 10 * time.Second
	DefaultOverallDeadline = 10 * time.Minute
	DefaultMaxWalkDepth = 64
	DefaultMaxRecursionDepth = 300
)

// Config is the frozen set of knobs threaded through one scan (spec §6, §9).
type Config struct {
	ConfigDir string
	LogPath   string

	Threshold         float64
	Extensions        []string
	MaxWalkDepth      int
	PerFileTimeout    time.Duration
	OverallDeadline   time.Duration
	Workers           int
	MaxRecursionDepth int

	ShortLiteralThreshold int
	LargeIntegerThreshold int64

	ModelCacheDir string
	ModelEnvVar   string

	Quiet  bool
	Format string // "tree", "json", "yaml", "markdown"
}

// Default returns the scanner's defaults (spec §4.3, §4.5, §9 Open
// Questions fix the threshold at 0.7 and the short-literal threshold at 15).
func Default() Config {
	return Config{
		Threshold:             DefaultThreshold,
		Extensions:            []string{".py", ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"},
		MaxWalkDepth:          DefaultMaxWalkDepth,
		PerFileTimeout:        DefaultPerFileTimeout,
		OverallDeadline:       DefaultOverallDeadline,
		Workers:               DefaultWorkers,
		MaxRecursionDepth:     DefaultMaxRecursionDepth,
		ShortLiteralThreshold: DefaultShortLiteralThreshold,
		LargeIntegerThreshold: 1 << 53,
		ModelEnvVar:           "SOURCEGUARD_MODEL_CACHE",
		Format:                "tree",
	}
}

// Load resolves the config directory and model cache dir under the user's
// home, then overlays cfg on top of the defaults. An empty ConfigDir/LogPath
// is filled in from DefaultConfigDir/DefaultLogFile.
func Load(cfg Config) (Config, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = Default().Extensions
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, scanerr.New(scanerr.ConfigInvalid, "", "cannot resolve home directory", err)
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = filepath.Join(homeDir, DefaultConfigDir)
	}
	if err := ensureDir(cfg.ConfigDir); err != nil {
		return cfg, scanerr.New(scanerr.ConfigInvalid, cfg.ConfigDir, "cannot create config directory", err)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.ConfigDir, DefaultLogFile)
	}
	if cfg.ModelCacheDir == "" {
		if v := os.Getenv(cfg.ModelEnvVar); v != "" {
			cfg.ModelCacheDir = v
		} else {
			cfg.ModelCacheDir = filepath.Join(cfg.ConfigDir, "model-cache")
		}
	}

	return cfg, Validate(cfg)
}

// Validate reports a config_invalid error for any setting that would make
// the scan meaningless rather than merely suboptimal (spec §7: fatal before
// scan start).
func Validate(cfg Config) error {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return scanerr.New(scanerr.ConfigInvalid, "", fmt.Sprintf("threshold %.2f out of [0,1]", cfg.Threshold), nil)
	}
	if len(cfg.Extensions) == 0 {
		return scanerr.New(scanerr.ConfigInvalid, "", "no recognized extensions configured", nil)
	}
	if cfg.MaxWalkDepth <= 0 {
		return scanerr.New(scanerr.ConfigInvalid, "", "max walk depth must be positive", nil)
	}
	if cfg.PerFileTimeout <= 0 {
		return scanerr.New(scanerr.ConfigInvalid, "", "per-file timeout must be positive", nil)
	}
	switch cfg.Format {
	case "", "tree", "json", "yaml", "markdown":
	default:
		return scanerr.New(scanerr.ConfigInvalid, "", fmt.Sprintf("unknown report format %q", cfg.Format), nil)
	}
	return nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
