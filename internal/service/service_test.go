package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scanhub/scanhub/internal/archive"
	"github.com/scanhub/scanhub/internal/config"
	"github.com/scanhub/scanhub/internal/discovery"
	"github.com/scanhub/scanhub/internal/engine"
	"github.com/scanhub/scanhub/internal/model"
	"github.com/scanhub/scanhub/internal/output"
	"github.com/scanhub/scanhub/internal/registry"
	"github.com/scanhub/scanhub/internal/store"
	"github.com/scanhub/scanhub/internal/synth"
)

type recordingOpener struct {
	mu    sync.Mutex
	paths []string
}

func (o *recordingOpener) Open(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
	return nil
}

func (o *recordingOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.paths...)
}

type fixture struct {
	svc    *Service
	store  *store.Store
	reg    *registry.Registry
	eng    *engine.Engine
	opener *recordingOpener
	outDir string
}

func fastParams() engine.Params {
	return engine.Params{
		DurationMin: 40 * time.Millisecond,
		DurationMax: 40 * time.Millisecond,
		Steps:       4,
		FailureRate: 0,
	}
}

func newFixture(t *testing.T, params engine.Params) *fixture {
	t.Helper()

	sim := config.DefaultSimulation()
	sim.DiscoveryDelay = 0
	sim.DeviceDelay = 0
	sim.ConnectTestDelay = 0

	s := store.New()
	reg := registry.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hist, err := archive.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	outDir := t.TempDir()
	out := output.Resolver{Base: outDir}

	eng := engine.New(s, reg, synth.NewGenerator(), out, hist, logger, params)
	t.Cleanup(eng.Wait)

	providers := discovery.NewProviders()
	discovery.RegisterSimulated(providers, 0, 0)

	opener := &recordingOpener{}
	svc := New(Deps{
		Registry:  reg,
		Store:     s,
		Engine:    eng,
		History:   hist,
		Providers: providers,
		Opener:    opener,
		Output:    out,
		Logger:    logger,
		Platform:  model.SystemLinux,
		Sim:       sim,
	})

	return &fixture{svc: svc, store: s, reg: reg, eng: eng, opener: opener, outDir: outDir}
}

func (f *fixture) addDevice(t *testing.T) model.Device {
	t.Helper()
	d, err := f.svc.AddDevice("Test Scanner", model.ClassFlatbed, model.SystemLinux)
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	return d
}

func waitForStatus(t *testing.T, svc *Service, id, status string) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := svc.GetJob(id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j.Status == status {
			return j
		}
		if model.Terminal(j.Status) {
			t.Fatalf("job reached %q (error: %q), want %q", j.Status, j.Error, status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job never reached status %q", status)
	return model.Job{}
}

func TestDiscoverReplacesRegistry(t *testing.T) {
	f := newFixture(t, fastParams())

	first, err := f.svc.DiscoverDevices(context.Background())
	if err != nil {
		t.Fatalf("DiscoverDevices: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("discovered %d devices, want 2", len(first))
	}
	for _, d := range first {
		if d.System != model.SystemLinux {
			t.Errorf("device %q system = %q, want linux", d.Name, d.System)
		}
	}

	second, err := f.svc.DiscoverDevices(context.Background())
	if err != nil {
		t.Fatalf("second DiscoverDevices: %v", err)
	}

	// The second run replaces the set wholesale with fresh identities.
	if second[0].ID == first[0].ID {
		t.Error("second discovery reused a device ID")
	}
	if _, err := f.svc.GetDevice(first[0].ID); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("first-run device still resolvable, err = %v", err)
	}
	if got := len(f.svc.ListDevices()); got != 2 {
		t.Errorf("registry holds %d devices, want 2", got)
	}
}

func TestAddDeviceRejectsForeignSystem(t *testing.T) {
	f := newFixture(t, fastParams())

	_, err := f.svc.AddDevice("Alien Scanner", model.ClassFlatbed, model.SystemWindows)
	if !errors.Is(err, ErrSystemMismatch) {
		t.Fatalf("err = %v, want ErrSystemMismatch", err)
	}

	d := f.addDevice(t)
	if got, err := f.svc.GetDevice(d.ID); err != nil || got.Name != "Test Scanner" {
		t.Errorf("GetDevice = %+v, %v", got, err)
	}
}

func TestCreateJobRequiresAvailableDevice(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	if err := f.reg.SetStatus(d.ID, model.DeviceOffline, ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if !errors.Is(err, ErrDeviceNotAvailable) {
		t.Errorf("err = %v, want ErrDeviceNotAvailable", err)
	}

	_, err = f.svc.CreateJob("no-such-device", model.DocText, model.DefaultScanSettings())
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want registry.ErrNotFound", err)
	}
}

func TestJobRunsToCompletion(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocInvoice, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if j.Status != model.StatusPending {
		t.Fatalf("created status = %q, want pending", j.Status)
	}

	started, err := f.svc.StartJob(j.ID)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if started.Status != model.StatusScanning {
		t.Fatalf("started status = %q, want scanning", started.Status)
	}

	done := waitForStatus(t, f.svc, j.ID, model.StatusCompleted)
	f.eng.Wait()

	if done.Result == nil {
		t.Fatal("completed job has no result")
	}
	if _, err := os.Stat(done.Result.FilePath); err != nil {
		t.Errorf("artifact missing on disk: %v", err)
	}
	if !strings.HasPrefix(done.Result.FilePath, f.outDir) {
		t.Errorf("artifact %q not under output dir %q", done.Result.FilePath, f.outDir)
	}

	dev, err := f.svc.GetDevice(d.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if dev.Status != model.DeviceAvailable {
		t.Errorf("device status = %q, want available", dev.Status)
	}

	entries, total, err := f.svc.JobHistory(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if total != 1 || len(entries) != 1 || entries[0].Status != model.StatusCompleted {
		t.Errorf("history = %d entries (total %d), want one completed", len(entries), total)
	}
}

func TestStartRejectsNonPendingJob(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.svc.StartJob(j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	if _, err := f.svc.StartJob(j.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("second start err = %v, want ErrInvalidTransition", err)
	}
	waitForStatus(t, f.svc, j.ID, model.StatusCompleted)
}

func TestCancelPendingJob(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := f.svc.CancelJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// Cancelling again is a conflict, not idempotent.
	if _, err := f.svc.CancelJob(context.Background(), j.ID); !errors.Is(err, ErrJobNotCancellable) {
		t.Errorf("second cancel err = %v, want ErrJobNotCancellable", err)
	}

	_, total, err := f.svc.JobHistory(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if total != 1 {
		t.Errorf("history total = %d, want the cancelled job archived", total)
	}
}

func TestCancelRunningJobReleasesDevice(t *testing.T) {
	params := fastParams()
	params.DurationMin = 400 * time.Millisecond
	params.DurationMax = 400 * time.Millisecond
	params.Steps = 8
	f := newFixture(t, params)
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.svc.StartJob(j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	// Let the run claim the device before pulling the plug.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		dev, err := f.svc.GetDevice(d.ID)
		if err != nil {
			t.Fatalf("GetDevice: %v", err)
		}
		if dev.Status == model.DeviceBusy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	got, err := f.svc.CancelJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	f.eng.Wait()

	// The cancel sticks even though the engine run was still going.
	final, err := f.svc.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.Status != model.StatusCancelled {
		t.Errorf("final status = %q, want cancelled", final.Status)
	}
	if final.Result != nil {
		t.Error("cancelled job carries a result")
	}

	dev, err := f.svc.GetDevice(d.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if dev.Status != model.DeviceAvailable {
		t.Errorf("device status = %q, want available", dev.Status)
	}
}

func TestRemoveDeviceWithActiveJobs(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	err = f.svc.RemoveDevice(d.ID)
	if !errors.Is(err, ErrDeviceHasActiveJobs) {
		t.Fatalf("err = %v, want ErrDeviceHasActiveJobs", err)
	}
	if !strings.Contains(err.Error(), j.ID) {
		t.Errorf("error %q does not name blocking job %s", err, j.ID)
	}

	if _, err := f.svc.CancelJob(context.Background(), j.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if err := f.svc.RemoveDevice(d.ID); err != nil {
		t.Errorf("RemoveDevice after cancel: %v", err)
	}
}

func TestResetDeviceStatus(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	if err := f.reg.SetStatus(d.ID, model.DeviceError, "paper jam"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	got, err := f.svc.ResetDeviceStatus(d.ID)
	if err != nil {
		t.Fatalf("ResetDeviceStatus: %v", err)
	}
	if got.Status != model.DeviceAvailable || got.StatusReason != "" {
		t.Errorf("device = %q/%q, want available with no reason", got.Status, got.StatusReason)
	}
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	f.svc.roll = func() float64 { return 0.0 }
	ok, err := f.svc.TestConnection(context.Background(), d.ID)
	if err != nil || !ok {
		t.Errorf("TestConnection = %v, %v, want success", ok, err)
	}

	// A flatbed passes at 0.95; a roll of 0.99 misses it.
	f.svc.roll = func() float64 { return 0.99 }
	ok, err = f.svc.TestConnection(context.Background(), d.ID)
	if err != nil || ok {
		t.Errorf("TestConnection = %v, %v, want failure", ok, err)
	}

	if _, err := f.svc.TestConnection(context.Background(), "no-such-device"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want registry.ErrNotFound", err)
	}
}

func TestResultAndPreview(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocReceipt, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if _, err := f.svc.GetResult(j.ID); !errors.Is(err, ErrNoResult) {
		t.Errorf("pending result err = %v, want ErrNoResult", err)
	}

	if _, err := f.svc.StartJob(j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	done := waitForStatus(t, f.svc, j.ID, model.StatusCompleted)

	result, err := f.svc.GetResult(j.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.FilePath != done.Result.FilePath {
		t.Errorf("result path = %q, want %q", result.FilePath, done.Result.FilePath)
	}

	if err := f.svc.PreviewFile(j.ID); err != nil {
		t.Fatalf("PreviewFile: %v", err)
	}
	if err := f.svc.OpenOutputDir(); err != nil {
		t.Fatalf("OpenOutputDir: %v", err)
	}

	opened := f.opener.opened()
	if len(opened) != 2 || opened[0] != result.FilePath || opened[1] != f.outDir {
		t.Errorf("opened = %v, want artifact then output dir", opened)
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	info := f.svc.Info()
	if info.Platform != model.SystemLinux {
		t.Errorf("Platform = %q, want linux", info.Platform)
	}
	if info.ScanAPI != "SANE" {
		t.Errorf("ScanAPI = %q, want SANE", info.ScanAPI)
	}
	if info.DevicesTotal != 1 || info.DevicesAvailable != 1 {
		t.Errorf("device counts = %d/%d, want 1/1", info.DevicesAvailable, info.DevicesTotal)
	}
	if info.ActiveJobs != 1 {
		t.Errorf("ActiveJobs = %d, want 1", info.ActiveJobs)
	}

	if _, err := f.svc.CancelJob(context.Background(), j.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if got := f.svc.Info().ActiveJobs; got != 0 {
		t.Errorf("ActiveJobs after cancel = %d, want 0", got)
	}
}

func TestNilHistoryReportsEmptyArchive(t *testing.T) {
	s := store.New()
	reg := registry.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := output.Resolver{Base: t.TempDir()}

	eng := engine.New(s, reg, synth.NewGenerator(), out, nil, logger, fastParams())
	t.Cleanup(eng.Wait)

	providers := discovery.NewProviders()
	discovery.RegisterSimulated(providers, 0, 0)

	svc := New(Deps{
		Registry:  reg,
		Store:     s,
		Engine:    eng,
		Providers: providers,
		Opener:    &recordingOpener{},
		Output:    out,
		Logger:    logger,
		Platform:  model.SystemLinux,
		Sim:       config.DefaultSimulation(),
	})

	entries, total, err := svc.JobHistory(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("JobHistory: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Errorf("history = %d entries (total %d), want empty", len(entries), total)
	}

	stats, err := svc.HistoryStats(context.Background())
	if err != nil {
		t.Fatalf("HistoryStats: %v", err)
	}
	if stats.Total != 0 || len(stats.CountByStatus) != 0 {
		t.Errorf("stats = %+v, want zero values", stats)
	}

	// The cancel path's archival is skipped, not a panic.
	d, err := svc.AddDevice("Test Scanner", model.ClassFlatbed, model.SystemLinux)
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	j, err := svc.CreateJob(d.ID, model.DocText, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := svc.CancelJob(context.Background(), j.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
}

func TestHistoryStats(t *testing.T) {
	f := newFixture(t, fastParams())
	d := f.addDevice(t)

	j, err := f.svc.CreateJob(d.ID, model.DocContract, model.DefaultScanSettings())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.svc.StartJob(j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	waitForStatus(t, f.svc, j.ID, model.StatusCompleted)
	f.eng.Wait()

	stats, err := f.svc.HistoryStats(context.Background())
	if err != nil {
		t.Fatalf("HistoryStats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 1 {
		t.Errorf("CountByStatus = %v, want one completed", stats.CountByStatus)
	}
	if stats.CountByType[model.DocContract] != 1 {
		t.Errorf("CountByType = %v, want one contract", stats.CountByType)
	}
}
