// Package service is the orchestration layer: it coordinates the device
// registry, job store, lifecycle engine, and the host-facing collaborators
// (artifact output, file launcher, history archive) behind one API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/scanhub/scanhub/internal/archive"
	"github.com/scanhub/scanhub/internal/config"
	"github.com/scanhub/scanhub/internal/discovery"
	"github.com/scanhub/scanhub/internal/engine"
	"github.com/scanhub/scanhub/internal/model"
	"github.com/scanhub/scanhub/internal/registry"
	"github.com/scanhub/scanhub/internal/store"
)

var (
	// ErrDeviceNotAvailable is returned when a job targets a device that is
	// busy, offline, or errored.
	ErrDeviceNotAvailable = errors.New("device not available")

	// ErrDeviceHasActiveJobs is returned when removing a device that still
	// owns non-terminal jobs.
	ErrDeviceHasActiveJobs = errors.New("device has active jobs")

	// ErrSystemMismatch is returned when a manually added device claims a
	// platform other than the one this instance simulates.
	ErrSystemMismatch = errors.New("device system does not match host platform")

	// ErrJobNotCancellable is returned when cancelling a job that is already
	// terminal.
	ErrJobNotCancellable = errors.New("job is not cancellable")

	// ErrNoResult is returned when a result is requested for a job that has
	// not completed.
	ErrNoResult = errors.New("job has no result")
)

// connectSuccessRates is the per-class probability that a connection test
// passes, mirroring how flaky each transport tends to be.
var connectSuccessRates = map[string]float64{
	model.ClassFlatbed:  0.95,
	model.ClassFeeder:   0.90,
	model.ClassSheetFed: 0.85,
	model.ClassHandheld: 0.80,
	model.ClassFilm:     0.88,
	model.ClassPhoto:    0.92,
}

// History persists and queries terminal jobs.
type History interface {
	Record(ctx context.Context, j model.Job) error
	List(ctx context.Context, limit, offset int) ([]archive.Entry, int, error)
	GetStats(ctx context.Context) (*archive.Stats, error)
}

// Opener reveals a path in the host's default viewer.
type Opener interface {
	Open(path string) error
}

// OutputResolver yields the directory scan artifacts are written to.
type OutputResolver interface {
	Dir() (string, error)
}

// SystemInfo describes this instance for the info endpoint.
type SystemInfo struct {
	Platform         string `json:"platform"`
	ScanAPI          string `json:"scan_api"`
	DevicesAvailable int    `json:"devices_available"`
	DevicesTotal     int    `json:"devices_total"`
	ActiveJobs       int    `json:"active_jobs"`
}

// Deps bundles the collaborators the service orchestrates. History may be
// nil: archival is skipped and history queries report an empty archive.
type Deps struct {
	Registry  *registry.Registry
	Store     *store.Store
	Engine    *engine.Engine
	History   History
	Providers *discovery.Providers
	Opener    Opener
	Output    OutputResolver
	Logger    *slog.Logger
	Platform  string
	Sim       config.Simulation
}

// Service orchestrates devices and scan jobs for one simulated platform.
type Service struct {
	registry  *registry.Registry
	store     *store.Store
	engine    *engine.Engine
	history   History
	providers *discovery.Providers
	opener    Opener
	output    OutputResolver
	logger    *slog.Logger
	platform  string
	sim       config.Simulation

	// roll draws the connection test outcome; tests pin it.
	roll func() float64
}

func defaultRoll() float64 { return rand.Float64() }

// New creates the orchestration service.
func New(d Deps) *Service {
	return &Service{
		registry:  d.Registry,
		store:     d.Store,
		engine:    d.Engine,
		history:   d.History,
		providers: d.Providers,
		opener:    d.Opener,
		output:    d.Output,
		logger:    d.Logger,
		platform:  d.Platform,
		sim:       d.Sim,
		roll:      defaultRoll,
	}
}

// DiscoverDevices runs the platform's discovery provider and replaces the
// registry contents with its result. Running discovery twice yields a fresh
// set; devices from the prior run are gone.
func (s *Service) DiscoverDevices(ctx context.Context) ([]model.Device, error) {
	prov, err := s.providers.Resolve(s.platform)
	if err != nil {
		return nil, err
	}

	devices, err := prov.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover devices: %w", err)
	}

	s.registry.ReplaceAll(devices)
	s.logger.Info("discovery completed", "platform", s.platform, "devices", len(devices))
	return devices, nil
}

// ListDevices returns all known devices.
func (s *Service) ListDevices() []model.Device {
	return s.registry.List()
}

// ListDevicesBySystem returns the devices belonging to one system class.
func (s *Service) ListDevicesBySystem(system string) []model.Device {
	return s.registry.ListBySystem(system)
}

// GetDevice returns one device by ID.
func (s *Service) GetDevice(id string) (model.Device, error) {
	return s.registry.Get(id)
}

// Capabilities returns the capability sheet of one device.
func (s *Service) Capabilities(id string) (model.Capabilities, error) {
	d, err := s.registry.Get(id)
	if err != nil {
		return model.Capabilities{}, err
	}
	return d.Capabilities, nil
}

// AddDevice registers a manually configured device. The device must belong
// to the platform this instance simulates; an empty system means the host.
func (s *Service) AddDevice(name, class, system string) (model.Device, error) {
	if system == "" {
		system = s.platform
	}
	if system != s.platform {
		return model.Device{}, fmt.Errorf("%w: got %q, host is %q", ErrSystemMismatch, system, s.platform)
	}

	d := model.NewDevice(name, class, system)
	s.registry.Upsert(d)
	s.logger.Info("device added", "device_id", d.ID, "name", name)
	return d, nil
}

// RemoveDevice deletes a device. Devices owning active jobs cannot be
// removed; the error names the blocking jobs.
func (s *Service) RemoveDevice(id string) error {
	if ids := s.store.ActiveForDevice(id); len(ids) > 0 {
		return fmt.Errorf("%w: %s", ErrDeviceHasActiveJobs, strings.Join(ids, ", "))
	}
	if err := s.registry.Remove(id); err != nil {
		return err
	}
	s.logger.Info("device removed", "device_id", id)
	return nil
}

// ResetDeviceStatus forces a device back to available, clearing any error.
func (s *Service) ResetDeviceStatus(id string) (model.Device, error) {
	if err := s.registry.SetStatus(id, model.DeviceAvailable, ""); err != nil {
		return model.Device{}, err
	}
	return s.registry.Get(id)
}

// TestConnection probes a device after a simulated handshake delay. The
// outcome is a per-class weighted coin flip.
func (s *Service) TestConnection(ctx context.Context, id string) (bool, error) {
	d, err := s.registry.Get(id)
	if err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(s.sim.ConnectTestDelay):
	}

	rate, ok := connectSuccessRates[d.Class]
	if !ok {
		rate = 0.75
	}
	return s.roll() < rate, nil
}

// CreateJob creates a pending job against an available device.
func (s *Service) CreateJob(deviceID, docType string, settings model.ScanSettings) (model.Job, error) {
	d, err := s.registry.Get(deviceID)
	if err != nil {
		return model.Job{}, err
	}
	if !d.IsAvailable() {
		return model.Job{}, fmt.Errorf("%w: device %q is %s", ErrDeviceNotAvailable, d.Name, d.Status)
	}

	j := model.NewJob(deviceID, docType, settings)
	s.store.Insert(j)
	s.logger.Info("job created", "job_id", j.ID, "device_id", deviceID, "document_type", docType)
	return j, nil
}

// StartJob transitions a pending job to scanning and hands it to the
// engine. The transition is synchronous; the scan itself is not.
func (s *Service) StartJob(id string) (model.Job, error) {
	err := s.store.Update(id, func(cur model.Job) (model.Job, error) {
		if !model.ValidTransition(cur.Status, model.StatusScanning) {
			return cur, fmt.Errorf("%w: cannot start job in status %q", store.ErrInvalidTransition, cur.Status)
		}
		cur.Status = model.StatusScanning
		return cur, nil
	})
	if err != nil {
		return model.Job{}, err
	}

	j, err := s.store.Get(id)
	if err != nil {
		return model.Job{}, err
	}
	s.engine.Run(j)
	s.logger.Info("job started", "job_id", id)
	return j, nil
}

// CancelJob moves an active job to cancelled. A pending job never owned its
// device, so the device is only released when the job was mid-scan.
func (s *Service) CancelJob(ctx context.Context, id string) (model.Job, error) {
	now := time.Now().UTC()
	var prevStatus string
	err := s.store.Update(id, func(cur model.Job) (model.Job, error) {
		if !cur.Active() {
			return cur, fmt.Errorf("%w: job is %q", ErrJobNotCancellable, cur.Status)
		}
		prevStatus = cur.Status
		cur.Status = model.StatusCancelled
		cur.CompletedAt = &now
		return cur, nil
	})
	if err != nil {
		return model.Job{}, err
	}

	j, err := s.store.Get(id)
	if err != nil {
		return model.Job{}, err
	}

	if prevStatus != model.StatusPending {
		if err := s.registry.SetStatus(j.DeviceID, model.DeviceAvailable, ""); err != nil && !errors.Is(err, registry.ErrNotFound) {
			s.logger.Error("release device after cancel", "device_id", j.DeviceID, "error", err)
		}
	}

	engine.MarkTerminal(model.StatusCancelled)
	if s.history != nil {
		if err := s.history.Record(ctx, j); err != nil {
			s.logger.Error("archive cancelled job", "job_id", id, "error", err)
		}
	}
	s.logger.Info("job cancelled", "job_id", id)
	return j, nil
}

// GetJob returns one job by ID.
func (s *Service) GetJob(id string) (model.Job, error) {
	return s.store.Get(id)
}

// ListJobs returns all live jobs, newest first.
func (s *Service) ListJobs() []model.Job {
	return s.store.List()
}

// GetResult returns the result of a completed job.
func (s *Service) GetResult(id string) (*model.ScanResult, error) {
	j, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if j.Status != model.StatusCompleted || j.Result == nil {
		return nil, fmt.Errorf("%w: job is %q", ErrNoResult, j.Status)
	}
	return j.Result, nil
}

// PreviewFile opens a completed job's artifact in the host viewer.
func (s *Service) PreviewFile(id string) error {
	result, err := s.GetResult(id)
	if err != nil {
		return err
	}
	return s.opener.Open(result.FilePath)
}

// OpenOutputDir reveals the scan output directory in the file manager.
func (s *Service) OpenOutputDir() error {
	dir, err := s.output.Dir()
	if err != nil {
		return err
	}
	return s.opener.Open(dir)
}

// JobHistory returns a page of archived jobs plus the total count.
func (s *Service) JobHistory(ctx context.Context, limit, offset int) ([]archive.Entry, int, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	return s.history.List(ctx, limit, offset)
}

// HistoryStats returns aggregate statistics over the archive.
func (s *Service) HistoryStats(ctx context.Context) (*archive.Stats, error) {
	if s.history == nil {
		return &archive.Stats{
			CountByStatus: make(map[string]int),
			CountByType:   make(map[string]int),
		}, nil
	}
	return s.history.GetStats(ctx)
}

// DiscoveryProviders lists the registered discovery strategies.
func (s *Service) DiscoveryProviders() []discovery.ProviderInfo {
	return s.providers.List()
}

// Info summarizes this instance: platform, scan API, device and job counts.
func (s *Service) Info() SystemInfo {
	api := "unknown"
	if prov, err := s.providers.Resolve(s.platform); err == nil {
		api = prov.APILabel()
	}

	available, total := s.registry.Counts()
	return SystemInfo{
		Platform:         s.platform,
		ScanAPI:          api,
		DevicesAvailable: available,
		DevicesTotal:     total,
		ActiveJobs:       s.store.CountActive(),
	}
}
