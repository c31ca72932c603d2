package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"convq/internal/domain"
	"convq/internal/infrastructure/logger"
	"convq/internal/port"
)

// dispatchFailedExit is the synthetic exit status reported when the
// converter refuses a dispatch (e.g. the binary cannot be spawned), so the
// failure flows through the same completion path as an engine error.
const dispatchFailedExit = -1

// Orchestrator owns the ordered job queue and the sequential scheduling
// policy: at most one job runs at a time, and each completion immediately
// triggers the next start. All state transitions happen under one mutex,
// so externally observed events are applied in order and never overlap.
//
// The orchestrator is the converter's event sink: the converter delivers
// progress and completion through OnProgress/OnCompleted.
type Orchestrator struct {
	mu      sync.Mutex
	jobs    []*domain.Job
	current *domain.Job
	busy    bool
	nextID  int64

	probe        port.MediaProbe
	converter    port.MediaConverter
	history      port.HistoryStore
	bus          NotificationPublisher
	probeTimeout time.Duration
}

func NewOrchestrator(
	probe port.MediaProbe,
	converter port.MediaConverter,
	history port.HistoryStore,
	bus NotificationPublisher,
	probeTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		probe:        probe,
		converter:    converter,
		history:      history,
		bus:          bus,
		probeTimeout: probeTimeout,
	}
}

// Add probes the source for its duration and, on success, appends a queued
// job to the tail. The probe is bounded by the configured timeout; if it
// fails, no job is created and no state changes. The probe runs outside the
// queue lock so converter events are never stalled behind it.
func (o *Orchestrator) Add(ctx context.Context, params domain.ConversionParameters) (domain.Job, error) {
	probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	duration, err := o.probe.Probe(probeCtx, params.Source)
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: %w", domain.ErrProbeFailed, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	job := &domain.Job{
		ID:        o.nextID,
		Params:    params,
		Duration:  duration,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	o.jobs = append(o.jobs, job)

	logger.Info.Printf("job %d queued: %s -> %s", job.ID,
		logger.SanitizeForLog(params.Source), logger.SanitizeForLog(params.Destination))

	snapshot := *job
	o.publish(Notification{Type: EventJobAdded, Job: &snapshot, JobID: job.ID})

	return snapshot, nil
}

// Remove excises the job at index from the queue. A running job is refused
// rather than interrupted; the caller gets false and the queue is
// unchanged. Out-of-range indices are likewise refused.
func (o *Orchestrator) Remove(index int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if index < 0 || index >= len(o.jobs) {
		return false
	}
	if o.jobs[index].Status == domain.JobStatusRunning {
		logger.Warn.Printf("refused to remove running job %d", o.jobs[index].ID)
		return false
	}

	removed := o.jobs[index]
	o.jobs = append(o.jobs[:index], o.jobs[index+1:]...)

	logger.Info.Printf("job %d removed from queue", removed.ID)
	o.publish(Notification{Type: EventJobRemoved, Index: index, JobID: removed.ID})

	return true
}

// Start launches the first queued job, scanning from the head of the
// queue. A no-op while busy. When nothing is left to run it goes idle and
// announces that all jobs finished.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startLocked()
}

func (o *Orchestrator) startLocked() {
	if o.busy {
		return
	}

	for i, job := range o.jobs {
		if job.Status != domain.JobStatusQueued {
			continue
		}

		o.busy = true
		job.Status = domain.JobStatusRunning
		o.current = job

		if err := o.converter.Dispatch(job.Params, job.Duration.TotalSeconds()); err != nil {
			logger.Error.Printf("dispatch job %d: %v", job.ID, err)
			o.completeLocked(dispatchFailedExit)
			return
		}

		logger.Info.Printf("job %d started (queue position %d)", job.ID, i)
		params := job.Params
		o.publish(Notification{Type: EventConversionStarted, Index: i, JobID: job.ID, Params: &params})
		return
	}

	// Queue empty or all jobs terminal.
	o.stopLocked()
	o.publish(Notification{Type: EventAllJobsFinished})
}

// Stop cancels the in-flight conversion, if any. The current job reverts
// to queued (user cancellation is not a failure) and its displayed
// progress resets to zero. Idempotent.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *Orchestrator) stopLocked() {
	if o.current != nil {
		o.current.Progress = 0
		o.publish(Notification{Type: EventProgressUpdated, JobID: o.current.ID, Percentage: 0})
		o.current.Status = domain.JobStatusQueued
		logger.Info.Printf("job %d stopped, back to queued", o.current.ID)
		o.current = nil
	}
	o.busy = false
	o.converter.Halt()
}

// OnCompleted consumes the converter's completion event. It marks the
// current job terminal, announces the outcome, and immediately tries to
// start the next queued job: this is what advances the queue. Completions
// with no current job are stale and dropped.
func (o *Orchestrator) OnCompleted(exitStatus int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		logger.Debug.Printf("stale completion dropped (exit=%d)", exitStatus)
		return
	}
	o.completeLocked(exitStatus)
}

func (o *Orchestrator) completeLocked(exitStatus int) {
	job := o.current

	if exitStatus == 0 {
		job.Status = domain.JobStatusFinished
		logger.Info.Printf("job %d finished", job.ID)
	} else {
		job.Status = domain.JobStatusFailed
		job.Progress = 0
		job.Remark = "failed"
		logger.Error.Printf("job %d failed (exit=%d)", job.ID, exitStatus)
		o.publish(Notification{Type: EventProgressUpdated, JobID: job.ID, Percentage: 0})
	}

	o.recordHistory(job, exitStatus)

	o.current = nil
	o.busy = false
	o.publish(Notification{Type: EventJobFinished, JobID: job.ID, ExitStatus: exitStatus})

	// Advance the queue; never wait for an external re-trigger.
	o.startLocked()
}

func (o *Orchestrator) recordHistory(job *domain.Job, exitStatus int) {
	if o.history == nil {
		return
	}
	entry := domain.HistoryEntry{
		JobID:       job.ID,
		Source:      job.Params.Source,
		Destination: job.Params.Destination,
		Status:      job.Status,
		ExitStatus:  exitStatus,
		FinishedAt:  time.Now(),
	}
	if err := o.history.Record(entry); err != nil {
		logger.Error.Printf("record history for job %d: %v", job.ID, err)
	}
}

// OnProgress forwards a percentage to the current job. Progress arriving
// with no current job (e.g. after a stop) is dropped, not buffered.
func (o *Orchestrator) OnProgress(percentage int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return
	}
	o.current.Progress = percentage
	o.publish(Notification{Type: EventProgressUpdated, JobID: o.current.ID, Percentage: percentage})
}

// Jobs returns a snapshot of the queue in insertion order.
func (o *Orchestrator) Jobs() []domain.Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.Job, len(o.jobs))
	for i, job := range o.jobs {
		out[i] = *job
	}
	return out
}

func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

func (o *Orchestrator) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}

func (o *Orchestrator) publish(n Notification) {
	if o.bus != nil {
		o.bus.Publish(n)
	}
}

var _ port.ConverterSink = (*Orchestrator)(nil)
