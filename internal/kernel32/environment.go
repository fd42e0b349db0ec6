package kernel32

// GetEnvironmentVariable returns the per-process override if one was set
// via SetEnvironmentVariable, falling back to the host environment
// snapshot taken at Subsystem construction.
func (k *Subsystem) GetEnvironmentVariable(name string) (string, bool) {
	k.envMu.Lock()
	defer k.envMu.Unlock()
	v, ok := k.env[name]
	return v, ok
}

// SetEnvironmentVariable installs an override visible only to this
// process's own GetEnvironmentVariable calls -- it does not touch the
// host process's real environment.
func (k *Subsystem) SetEnvironmentVariable(name, value string) {
	k.envMu.Lock()
	defer k.envMu.Unlock()
	if value == "" {
		delete(k.env, name)
		return
	}
	k.env[name] = value
}
