// Package registry holds the set of known devices behind a single
// registry-wide lock. Discovery replaces the whole set atomically; readers
// never observe a partially swapped registry.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/scanhub/scanhub/internal/model"
)

// ErrNotFound is returned when a device is not in the registry.
var ErrNotFound = errors.New("device not found")

// Registry is a mutex-guarded map of devices keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]model.Device
}

// New creates an empty device registry.
func New() *Registry {
	return &Registry{
		devices: make(map[string]model.Device),
	}
}

// List returns all devices, sorted by name for a stable API response.
func (r *Registry) List() []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(model.Device) bool { return true })
}

// ListBySystem returns the devices produced by the given system's discovery path.
func (r *Registry) ListBySystem(system string) []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(d model.Device) bool { return d.System == system })
}

// snapshot copies matching devices out of the map. Callers must hold the lock.
func (r *Registry) snapshot(keep func(model.Device) bool) []model.Device {
	out := make([]model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns the device with the given ID.
func (r *Registry) Get(id string) (model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return model.Device{}, ErrNotFound
	}
	return d, nil
}

// ReplaceAll atomically swaps the registry contents for the given set.
// Used by discovery; the prior set is discarded in the same critical section.
func (r *Registry) ReplaceAll(devices []model.Device) {
	next := make(map[string]model.Device, len(devices))
	for _, d := range devices {
		next[d.ID] = d
	}

	r.mu.Lock()
	r.devices = next
	r.mu.Unlock()
}

// Upsert inserts or replaces a single device.
func (r *Registry) Upsert(d model.Device) {
	r.mu.Lock()
	r.devices[d.ID] = d
	r.mu.Unlock()
}

// Remove deletes the device with the given ID.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

// SetStatus updates a device's status, clearing the status reason unless
// the new status is the error status.
func (r *Registry) SetStatus(id, status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	if status == model.DeviceError {
		d.StatusReason = reason
	} else {
		d.StatusReason = ""
	}
	r.devices[id] = d
	return nil
}

// Counts returns the number of available devices and the total device count
// in one critical section.
func (r *Registry) Counts() (available, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.IsAvailable() {
			available++
		}
	}
	return available, len(r.devices)
}
