// Package gpudriver loads an optional host graphics-driver plugin and
// drives it through its state machine. When no plugin is found (or it
// fails to load), the caller falls back to internal/d3d's software
// rasterizer.
package gpudriver

import (
	"fmt"
)

// State is one stage of the driver lifecycle. Failure at any stage
// releases everything allocated by the prior stage and returns to
// Uninitialised.
type State int

const (
	Uninitialised State = iota
	InstanceCreated
	DeviceReady
	RenderTargetReady
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case InstanceCreated:
		return "instance-created"
	case DeviceReady:
		return "device-ready"
	case RenderTargetReady:
		return "render-target-ready"
	case ShutDown:
		return "shut-down"
	default:
		return "unknown"
	}
}

// Driver is the interface a host graphics-driver plugin must
// implement. The bootstrap symbol GPUDriverBootstrap returns one of
// these.
type Driver interface {
	// CreateInstance performs whatever one-time setup the backend
	// needs (opening a device file, creating a graphics API instance).
	CreateInstance() error
	// CreateDevice selects/initializes a physical device.
	CreateDevice() error
	// CreateRenderTarget allocates a width x height RGBA8 target the
	// backend renders into.
	CreateRenderTarget(width, height int) error
	// Submit executes the recorded ops against the current render
	// target, waits for completion, and returns pixel data read back
	// via a staging buffer (synchronous from the caller's view).
	Submit(ops []byte) ([]byte, error)
	// Shutdown releases every resource the backend holds.
	Shutdown() error
}

// Machine drives a Driver through its state machine, enforcing that
// each transition only succeeds from the expected predecessor state
// and rolling back to Uninitialised on any failure.
type Machine struct {
	driver Driver
	state  State
	width  int
	height int
}

// NewMachine wraps driver, starting in Uninitialised.
func NewMachine(driver Driver) *Machine {
	return &Machine{driver: driver, state: Uninitialised}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

func (m *Machine) transitionError(from State, err error) error {
	// Shutdown is the Driver's only release path, so it is what frees
	// whatever the stages before the failed one allocated.
	if from != Uninitialised {
		_ = m.driver.Shutdown()
	}
	m.state = Uninitialised
	return fmt.Errorf("gpudriver: transition from %s failed: %w", from, err)
}

// CreateInstance moves Uninitialised -> InstanceCreated.
func (m *Machine) CreateInstance() error {
	if m.state != Uninitialised {
		return fmt.Errorf("gpudriver: CreateInstance requires state %s, got %s", Uninitialised, m.state)
	}
	if err := m.driver.CreateInstance(); err != nil {
		return m.transitionError(m.state, err)
	}
	m.state = InstanceCreated
	return nil
}

// CreateDevice moves InstanceCreated -> DeviceReady.
func (m *Machine) CreateDevice() error {
	if m.state != InstanceCreated {
		return fmt.Errorf("gpudriver: CreateDevice requires state %s, got %s", InstanceCreated, m.state)
	}
	if err := m.driver.CreateDevice(); err != nil {
		return m.transitionError(m.state, err)
	}
	m.state = DeviceReady
	return nil
}

// CreateRenderTarget moves DeviceReady -> RenderTargetReady.
func (m *Machine) CreateRenderTarget(width, height int) error {
	if m.state != DeviceReady {
		return fmt.Errorf("gpudriver: CreateRenderTarget requires state %s, got %s", DeviceReady, m.state)
	}
	if err := m.driver.CreateRenderTarget(width, height); err != nil {
		return m.transitionError(m.state, err)
	}
	m.width, m.height = width, height
	m.state = RenderTargetReady
	return nil
}

// Submit replays ops against the render target and waits for
// completion, as the real backend has no async pipelining yet: "wait
// idle every submission" is the correctness baseline, not an
// optimization left for later.
func (m *Machine) Submit(ops []byte) ([]byte, error) {
	if m.state != RenderTargetReady {
		return nil, fmt.Errorf("gpudriver: Submit requires state %s, got %s", RenderTargetReady, m.state)
	}
	return m.driver.Submit(ops)
}

// Shutdown releases every resource regardless of current state, and
// moves to ShutDown. It is valid to call from any state.
func (m *Machine) Shutdown() error {
	if m.state == ShutDown {
		return nil
	}
	err := m.driver.Shutdown()
	m.state = ShutDown
	return err
}
