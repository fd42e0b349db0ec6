// Package config reads the small set of environment variables that
// select citc's runtime behavior. There is no structured
// config file format to parse -- four flat scalars -- so this stays on
// os.Getenv rather than pulling in a config-file library such as viper;
// see DESIGN.md for the longer justification.
package config

import (
	"os"
	"path/filepath"

	"github.com/citcrun/citc/internal/citclog"
)

// Config holds the resolved runtime configuration.
type Config struct {
	// RegistryRoot is the host directory backing the registry hives.
	RegistryRoot string

	// GPUEnabled selects whether internal/gpudriver attempts to load a
	// host graphics driver at device-creation time.
	GPUEnabled bool

	// Verbosity is the logging threshold.
	Verbosity citclog.Level

	// DLLSearchDir, if set, is searched for an override GPU driver plugin
	// before the default plugin directories (current directory, then the
	// executable's directory). The export resolver does not consult it.
	DLLSearchDir string
}

const (
	envRegistryRoot = "CITC_REGISTRY_ROOT"
	envGPU          = "CITC_GPU"
	envVerbosity    = "CITC_VERBOSITY"
	envDLLPath      = "CITC_DLL_PATH"
)

// FromEnv builds a Config from the process environment, applying the
// documented defaults for anything unset.
func FromEnv() Config {
	cfg := Config{
		RegistryRoot: os.Getenv(envRegistryRoot),
		GPUEnabled:   os.Getenv(envGPU) == "1",
		Verbosity:    citclog.ParseLevel(os.Getenv(envVerbosity)),
		DLLSearchDir: os.Getenv(envDLLPath),
	}

	if cfg.RegistryRoot == "" {
		cfg.RegistryRoot = defaultRegistryRoot()
	}

	return cfg
}

func defaultRegistryRoot() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "citc", "registry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "citc", "registry")
	}
	return filepath.Join(home, ".config", "citc", "registry")
}
