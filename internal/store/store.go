// Package store holds live job state. Every mutation goes through Update,
// which applies the caller's transition inside the store's critical
// section; nothing outside the store can read-modify-write a job.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/scanhub/scanhub/internal/model"
)

// ErrNotFound is returned when a job is not in the store.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned by mutators that attempt a status change
// the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is a mutex-guarded map of jobs keyed by ID.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

// New creates an empty job store.
func New() *Store {
	return &Store{
		jobs: make(map[string]model.Job),
	}
}

// Insert adds a job to the store.
func (s *Store) Insert(j model.Job) {
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
}

// Get returns a copy of the job with the given ID.
func (s *Store) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return j, nil
}

// List returns all jobs, newest first.
func (s *Store) List() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update applies mutate to the stored job under the store's lock. The
// mutator sees the current job value and returns the next one, or an error
// to leave the job untouched. The error is returned to the caller as-is.
func (s *Store) Update(id string, mutate func(model.Job) (model.Job, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}

	next, err := mutate(j)
	if err != nil {
		return err
	}
	s.jobs[id] = next
	return nil
}

// CountActive returns the number of jobs in a non-terminal state.
func (s *Store) CountActive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, j := range s.jobs {
		if j.Active() {
			n++
		}
	}
	return n
}

// ActiveForDevice returns the IDs of non-terminal jobs owned by the given
// device, sorted for stable error messages.
func (s *Store) ActiveForDevice(deviceID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, j := range s.jobs {
		if j.DeviceID == deviceID && j.Active() {
			ids = append(ids, j.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
