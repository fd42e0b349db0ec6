package host

import (
	"testing"

	"github.com/citcrun/citc/internal/citclog"
	"github.com/citcrun/citc/internal/config"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cfg := config.Config{
		RegistryRoot: t.TempDir(),
		Verbosity:    citclog.LevelError,
	}
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func TestNewWiresEverySubsystem(t *testing.T) {
	h := newTestHost(t)

	for name, sub := range map[string]interface{}{
		"Kernel32": h.Kernel32,
		"Advapi32": h.Advapi32,
		"Winsock":  h.Winsock,
		"Ws2_32":   h.Ws2_32,
		"User32":   h.User32,
		"Gdi32":    h.Gdi32,
		"D3D":      h.D3D,
		"COM":      h.COM,
		"Exporter": h.Exporter,
	} {
		if sub == nil {
			t.Fatalf("%s was not constructed", name)
		}
	}
	if h.GPU != nil {
		t.Fatalf("GPU should stay nil when config.GPUEnabled is false")
	}
}

func TestNewRegistersExports(t *testing.T) {
	h := newTestHost(t)

	cases := []struct{ dll, name string }{
		{"kernel32.dll", "GetLastError"},
		{"advapi32.dll", "RegCreateKeyExW"},
		{"ws2_32.dll", "socket"},
		{"user32.dll", "RegisterClassExW"},
		{"gdi32.dll", "GetDC"},
		{"d3d11.dll", "D3D11CreateDevice"},
	}
	for _, c := range cases {
		if _, err := h.Resolver.Resolve(c.dll, c.name); err != nil {
			t.Errorf("%s!%s not registered: %v", c.dll, c.name, err)
		}
	}
}

func TestBootRejectsMalformedImage(t *testing.T) {
	h := newTestHost(t)

	if _, err := h.Boot([]byte("not a pe file")); err == nil {
		t.Fatalf("Boot succeeded on malformed input, want an error")
	}
}
