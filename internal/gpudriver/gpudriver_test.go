package gpudriver

import (
	"errors"
	"testing"
)

type fakeDriver struct {
	failCreateDevice bool
	shutdownCalls    int
	submitted        [][]byte
}

func (f *fakeDriver) CreateInstance() error { return nil }
func (f *fakeDriver) CreateDevice() error {
	if f.failCreateDevice {
		return errors.New("no adapter")
	}
	return nil
}
func (f *fakeDriver) CreateRenderTarget(width, height int) error { return nil }
func (f *fakeDriver) Submit(ops []byte) ([]byte, error) {
	f.submitted = append(f.submitted, ops)
	return []byte{1, 2, 3}, nil
}
func (f *fakeDriver) Shutdown() error {
	f.shutdownCalls++
	return nil
}

func TestMachineHappyPathTransitions(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)

	if err := m.CreateInstance(); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if m.State() != InstanceCreated {
		t.Fatalf("state = %v, want InstanceCreated", m.State())
	}
	if err := m.CreateDevice(); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := m.CreateRenderTarget(640, 480); err != nil {
		t.Fatalf("CreateRenderTarget: %v", err)
	}
	if m.State() != RenderTargetReady {
		t.Fatalf("state = %v, want RenderTargetReady", m.State())
	}

	out, err := m.Submit([]byte{0xAA})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Submit returned %v, want 3 bytes", out)
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if m.State() != ShutDown {
		t.Fatalf("state = %v, want ShutDown", m.State())
	}
	if d.shutdownCalls != 1 {
		t.Fatalf("Shutdown called %d times, want 1", d.shutdownCalls)
	}
}

func TestTransitionsOutOfOrderAreRejected(t *testing.T) {
	m := NewMachine(&fakeDriver{})
	if err := m.CreateDevice(); err == nil {
		t.Fatalf("CreateDevice before CreateInstance should fail")
	}
	if m.State() != Uninitialised {
		t.Fatalf("state should remain Uninitialised after rejected transition, got %v", m.State())
	}
	if _, err := m.Submit(nil); err == nil {
		t.Fatalf("Submit without a render target should fail")
	}
}

func TestFailedTransitionResetsToUninitialised(t *testing.T) {
	d := &fakeDriver{failCreateDevice: true}
	m := NewMachine(d)

	if err := m.CreateInstance(); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if err := m.CreateDevice(); err == nil {
		t.Fatalf("CreateDevice was expected to fail")
	}
	if m.State() != Uninitialised {
		t.Fatalf("state after failed transition = %v, want Uninitialised", m.State())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)
	_ = m.Shutdown()
	_ = m.Shutdown()
	if d.shutdownCalls != 1 {
		t.Fatalf("driver Shutdown called %d times, want 1 (idempotent at the machine level)", d.shutdownCalls)
	}
}

func TestLoadReturnsErrorWhenNoPluginPresent(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("Load should fail when no %s is present", PluginName)
	}
}
