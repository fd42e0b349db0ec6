package config

import (
	"path/filepath"
	"testing"

	"github.com/citcrun/citc/internal/citclog"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CITC_REGISTRY_ROOT", "")
	t.Setenv("CITC_GPU", "")
	t.Setenv("CITC_VERBOSITY", "")
	t.Setenv("CITC_DLL_PATH", "")
	t.Setenv("XDG_CONFIG_HOME", "/home/nobody/.config")

	cfg := FromEnv()

	want := filepath.Join("/home/nobody/.config", "citc", "registry")
	if cfg.RegistryRoot != want {
		t.Errorf("RegistryRoot = %q, want %q", cfg.RegistryRoot, want)
	}
	if cfg.GPUEnabled {
		t.Errorf("GPUEnabled = true, want false")
	}
	if cfg.Verbosity != citclog.ParseLevel("") {
		t.Errorf("Verbosity = %v, want the default parse of an empty string", cfg.Verbosity)
	}
	if cfg.DLLSearchDir != "" {
		t.Errorf("DLLSearchDir = %q, want empty", cfg.DLLSearchDir)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CITC_REGISTRY_ROOT", "/srv/citc-registry")
	t.Setenv("CITC_GPU", "1")
	t.Setenv("CITC_VERBOSITY", "debug")
	t.Setenv("CITC_DLL_PATH", "/opt/citc/drivers")

	cfg := FromEnv()

	if cfg.RegistryRoot != "/srv/citc-registry" {
		t.Errorf("RegistryRoot = %q, want /srv/citc-registry", cfg.RegistryRoot)
	}
	if !cfg.GPUEnabled {
		t.Errorf("GPUEnabled = false, want true")
	}
	if cfg.Verbosity != citclog.LevelDebug {
		t.Errorf("Verbosity = %v, want LevelDebug", cfg.Verbosity)
	}
	if cfg.DLLSearchDir != "/opt/citc/drivers" {
		t.Errorf("DLLSearchDir = %q, want /opt/citc/drivers", cfg.DLLSearchDir)
	}
}
