// Package engine advances started scan jobs through their lifecycle in
// detached goroutines. Terminal writes are conditional on the job still
// being in the scanning state, so an external cancel is never overwritten.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/scanhub/scanhub/internal/model"
	"github.com/scanhub/scanhub/internal/registry"
	"github.com/scanhub/scanhub/internal/store"
	"github.com/scanhub/scanhub/internal/synth"
)

// hardwareFailureReason is the diagnostic attached to injected failures.
const hardwareFailureReason = "scanner hardware error"

// errSuperseded signals that another writer already made the job terminal;
// the mutator aborts without touching the stored job.
var errSuperseded = errors.New("job already terminal")

// Params are the randomized-run knobs drawn at launch.
type Params struct {
	DurationMin time.Duration
	DurationMax time.Duration
	Steps       int
	FailureRate float64
}

// OutputResolver yields the directory scan artifacts are written to.
type OutputResolver interface {
	Dir() (string, error)
}

// Recorder persists terminal jobs. Implementations must tolerate the same
// job being recorded more than once.
type Recorder interface {
	Record(ctx context.Context, j model.Job) error
}

// Engine runs the scan lifecycle for started jobs.
type Engine struct {
	store    *store.Store
	registry *registry.Registry
	synth    synth.Synthesizer
	output   OutputResolver
	recorder Recorder
	logger   *slog.Logger
	params   Params
	rand     Source
	wg       sync.WaitGroup
}

// New creates an engine. recorder may be nil to skip history archival.
func New(s *store.Store, reg *registry.Registry, sy synth.Synthesizer, out OutputResolver, rec Recorder, logger *slog.Logger, params Params) *Engine {
	if params.Steps <= 0 {
		params.Steps = 20
	}
	if params.DurationMax < params.DurationMin {
		params.DurationMax = params.DurationMin
	}
	return &Engine{
		store:    s,
		registry: reg,
		synth:    sy,
		output:   out,
		recorder: rec,
		logger:   logger,
		params:   params,
		rand:     newRandSource(),
	}
}

// SetSource replaces the random source. Tests use it to force outcomes.
func (e *Engine) SetSource(src Source) {
	e.rand = src
}

// Run launches the lifecycle for a job that has already been transitioned
// to scanning. It returns immediately; the run proceeds in its own
// goroutine and is observed by polling the job store.
func (e *Engine) Run(j model.Job) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(j)
	}()
}

// Wait blocks until all in-flight runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run is the scan simulation: mark the device busy, walk the progress
// steps, then fail, complete, or quietly stand down if superseded.
func (e *Engine) run(j model.Job) {
	start := time.Now()

	// Best effort: a missing device is logged, not fatal.
	if err := e.registry.SetStatus(j.DeviceID, model.DeviceBusy, ""); err != nil {
		e.logger.Warn("device not found at scan start", "job_id", j.ID, "device_id", j.DeviceID)
	}

	// A cancel can land between the start transition and this goroutine
	// being scheduled. Re-read after claiming the device: a terminal job
	// means the claim was stale and must be undone, or the device would
	// stay busy with no run owning it.
	cur, err := e.store.Get(j.ID)
	if err != nil || model.Terminal(cur.Status) {
		e.logger.Info("scan run superseded before start", "job_id", j.ID)
		e.releaseDevice(j.ID, j.DeviceID)
		return
	}

	// Both random draws happen once, at launch.
	duration := e.rand.Duration(e.params.DurationMin, e.params.DurationMax)
	shouldFail := e.rand.ShouldFail(e.params.FailureRate)

	steps := e.params.Steps
	stepDuration := duration / time.Duration(steps)

	for step := 1; step <= steps; step++ {
		time.Sleep(stepDuration)

		progress := float64(step) / float64(steps)
		err := e.store.Update(j.ID, func(cur model.Job) (model.Job, error) {
			if model.Terminal(cur.Status) {
				return cur, errSuperseded
			}
			if progress > cur.Progress {
				cur.Progress = progress
			}
			return cur, nil
		})
		if errors.Is(err, errSuperseded) {
			// Cancelled (or otherwise finished) externally. Whoever wrote
			// the terminal state restored the device; touching it here
			// could steal it from a newer job.
			e.logger.Info("scan run superseded", "job_id", j.ID)
			return
		}
		if err != nil {
			e.logger.Error("update progress", "job_id", j.ID, "error", err)
			e.releaseDevice(j.ID, j.DeviceID)
			return
		}

		// Injected hardware failure fires only past the half-way mark.
		if shouldFail && step > steps/2 {
			if e.finishFailed(j.ID, hardwareFailureReason, start) {
				e.releaseDevice(j.ID, j.DeviceID)
			}
			return
		}
	}

	dir, err := e.output.Dir()
	if err != nil {
		if e.finishFailed(j.ID, "failed to create output directory: "+err.Error(), start) {
			e.releaseDevice(j.ID, j.DeviceID)
		}
		return
	}

	outputPath := filepath.Join(dir, synth.Filename(j.DocumentType, j.Settings.OutputFormat, time.Now().UTC()))
	result, err := e.synth.Synthesize(j.DocumentType, j.Settings, outputPath)
	if err != nil {
		if e.finishFailed(j.ID, "failed to generate file: "+err.Error(), start) {
			e.releaseDevice(j.ID, j.DeviceID)
		}
		return
	}

	now := time.Now().UTC()
	applied := e.finish(j.ID, func(cur model.Job) model.Job {
		cur.Status = model.StatusCompleted
		cur.Progress = 1.0
		cur.CompletedAt = &now
		cur.Result = result
		return cur
	})
	if !applied {
		// Cancelled while synthesizing. The canceller released the device
		// and it may already belong to a newer job; leave it alone.
		return
	}

	MarkTerminal(model.StatusCompleted)
	scanDurationSeconds.Observe(time.Since(start).Seconds())
	e.archive(j.ID)
	e.logger.Info("scan completed", "job_id", j.ID, "file", result.FilePath)
	e.releaseDevice(j.ID, j.DeviceID)
}

// finish applies a terminal transition if and only if the job is still in
// a non-terminal state. Reports whether the write landed.
func (e *Engine) finish(id string, apply func(model.Job) model.Job) bool {
	err := e.store.Update(id, func(cur model.Job) (model.Job, error) {
		if model.Terminal(cur.Status) {
			return cur, errSuperseded
		}
		return apply(cur), nil
	})
	if errors.Is(err, errSuperseded) {
		e.logger.Info("terminal write superseded", "job_id", id)
		return false
	}
	if err != nil {
		e.logger.Error("terminal transition", "job_id", id, "error", err)
		return false
	}
	return true
}

// finishFailed marks a job failed with the given reason. It reports
// whether the write landed; a superseded write means the canceller owns
// the device release.
func (e *Engine) finishFailed(id, reason string, start time.Time) bool {
	now := time.Now().UTC()
	applied := e.finish(id, func(cur model.Job) model.Job {
		cur.Status = model.StatusFailed
		cur.Error = reason
		cur.CompletedAt = &now
		return cur
	})
	if applied {
		MarkTerminal(model.StatusFailed)
		scanDurationSeconds.Observe(time.Since(start).Seconds())
		e.archive(id)
		e.logger.Warn("scan failed", "job_id", id, "reason", reason)
	}
	return applied
}

// releaseDevice returns the device to available. Missing devices are
// tolerated; the job's terminal status is already recorded.
func (e *Engine) releaseDevice(jobID, deviceID string) {
	err := e.registry.SetStatus(deviceID, model.DeviceAvailable, "")
	if errors.Is(err, registry.ErrNotFound) {
		e.logger.Warn("device missing during release", "job_id", jobID, "device_id", deviceID)
	}
}

// archive records the job's terminal snapshot in the history.
func (e *Engine) archive(id string) {
	if e.recorder == nil {
		return
	}
	j, err := e.store.Get(id)
	if err != nil {
		e.logger.Error("load job for archive", "job_id", id, "error", err)
		return
	}
	if err := e.recorder.Record(context.Background(), j); err != nil {
		e.logger.Error("archive job", "job_id", id, "error", err)
	}
}
