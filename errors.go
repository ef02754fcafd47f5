package delphes

import "fmt"

// ConfigError is returned from Module.Init. It is always fatal: the
// pipeline never processes an event if any module fails to configure.
type ConfigError struct {
	Module string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in module %q: %s", e.Module, e.Reason)
}

// EventError is returned from Module.Process. It is fatal to the run
// that produced it (not just the event), matching the policy that a
// reconstruction module never silently drops events it cannot handle.
type EventError struct {
	Module string
	Event  int
	Reason string
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event error in module %q at event %d: %s", e.Module, e.Event, e.Reason)
}
