package gpudriver

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
)

// PluginName is the conventional file name searched for the host
// graphics-driver library.
const PluginName = "libcitc_gpu.so"

// BootstrapSymbol is the exported symbol every driver plugin must
// provide: a niladic function returning a Driver.
const BootstrapSymbol = "GPUDriverBootstrap"

// defaultSearchPath lists the plugin directories: current directory
// first, then next to the running executable.
func defaultSearchPath() []string {
	paths := []string{"."}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}
	return paths
}

// Load resolves libcitc_gpu.so, preferring overrideDir (CITC_DLL_PATH)
// when non-empty, then the default search path. It returns the
// resolved Driver, or an error if no plugin could be loaded — callers
// treat that as "backend unavailable, fall back to the software path"
// rather than a fatal error.
func Load(overrideDir string) (Driver, error) {
	dirs := defaultSearchPath()
	if overrideDir != "" {
		dirs = append([]string{overrideDir}, dirs...)
	}

	var lastErr error
	for _, dir := range dirs {
		path := filepath.Join(dir, PluginName)
		if _, err := os.Stat(path); err != nil {
			lastErr = err
			continue
		}
		p, err := plugin.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		sym, err := p.Lookup(BootstrapSymbol)
		if err != nil {
			lastErr = err
			continue
		}
		bootstrap, ok := sym.(func() Driver)
		if !ok {
			lastErr = fmt.Errorf("gpudriver: %s does not have the expected %s signature", path, BootstrapSymbol)
			continue
		}
		return bootstrap(), nil
	}
	return nil, fmt.Errorf("gpudriver: no usable %s found: %w", PluginName, lastErr)
}
