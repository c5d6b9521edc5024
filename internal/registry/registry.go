// Package registry implements the device registry and the four-phase
// builder (Create, Validate, Cycle check, Finish) that turns a set of
// declared devices into a wired, running graph. The registry itself is a
// single shared-read/exclusive-write table of device.Device values keyed
// by unique id.
package registry

import (
	"sync"

	"github.com/meridian-automation/engine/internal/device"
)

// Registry is the shared-read/exclusive-write device table. Reads during
// steady state (an HTTP handler looking up a device, DOT export) do not
// block each other; only Build mutates it.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]device.Device
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[string]device.Device)}
}

// Get looks up a device by unique id.
func (r *Registry) Get(id string) (device.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// IDs returns every registered unique id, in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func (r *Registry) put(id string, d device.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[id] = d
}

func (r *Registry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, id)
}
