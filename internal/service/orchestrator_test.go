package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convq/internal/domain"
)

type fakeProbe struct {
	duration domain.Duration
	err      error
	calls    int
}

func (p *fakeProbe) Probe(ctx context.Context, path string) (domain.Duration, error) {
	p.calls++
	if p.err != nil {
		return domain.Duration{}, p.err
	}
	return p.duration, nil
}

type fakeConverter struct {
	dispatched  []domain.ConversionParameters
	halts       int
	dispatchErr error
}

func (c *fakeConverter) Dispatch(params domain.ConversionParameters, durationSeconds float64) error {
	if c.dispatchErr != nil {
		return c.dispatchErr
	}
	c.dispatched = append(c.dispatched, params)
	return nil
}

func (c *fakeConverter) Halt() {
	c.halts++
}

type fakeHistory struct {
	entries []domain.HistoryEntry
	err     error
}

func (h *fakeHistory) Record(entry domain.HistoryEntry) error {
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, entry)
	return nil
}

func (h *fakeHistory) Recent(limit int) ([]domain.HistoryEntry, error) {
	return h.entries, nil
}

type recordingBus struct {
	events []Notification
}

func (b *recordingBus) Publish(n Notification) {
	b.events = append(b.events, n)
}

func (b *recordingBus) ofType(t EventType) []Notification {
	var out []Notification
	for _, n := range b.events {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func params(src string) domain.ConversionParameters {
	return domain.ConversionParameters{
		Source:      src,
		Destination: src + ".webm",
		Preset:      domain.PresetAV1,
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeProbe, *fakeConverter, *fakeHistory, *recordingBus) {
	t.Helper()
	probe := &fakeProbe{duration: domain.DurationFromSeconds(120)}
	conv := &fakeConverter{}
	hist := &fakeHistory{}
	bus := &recordingBus{}
	orch := NewOrchestrator(probe, conv, hist, bus, time.Second)
	return orch, probe, conv, hist, bus
}

func addJobs(t *testing.T, orch *Orchestrator, sources ...string) {
	t.Helper()
	for _, src := range sources {
		_, err := orch.Add(context.Background(), params(src))
		require.NoError(t, err)
	}
}

// runningCount counts jobs in running state; the queue invariant caps it at one.
func runningCount(jobs []domain.Job) int {
	n := 0
	for _, j := range jobs {
		if j.Status == domain.JobStatusRunning {
			n++
		}
	}
	return n
}

func TestAdd_AppendsInCallOrderWithIncreasingIDs(t *testing.T) {
	orch, probe, _, _, bus := newTestOrchestrator(t)

	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv", "/media/c.mkv")

	jobs := orch.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, 3, probe.calls)

	for i, job := range jobs {
		assert.Equal(t, domain.JobStatusQueued, job.Status)
		assert.Equal(t, domain.DurationFromSeconds(120), job.Duration)
		if i > 0 {
			assert.Greater(t, job.ID, jobs[i-1].ID)
		}
	}
	assert.Equal(t, "/media/a.mkv", jobs[0].Params.Source)
	assert.Equal(t, "/media/b.mkv", jobs[1].Params.Source)
	assert.Equal(t, "/media/c.mkv", jobs[2].Params.Source)

	assert.Len(t, bus.ofType(EventJobAdded), 3)
}

func TestAdd_ProbeFailureAddsNothing(t *testing.T) {
	orch, probe, _, _, bus := newTestOrchestrator(t)
	probe.err = errors.New("no such file")

	_, err := orch.Add(context.Background(), params("/media/missing.mkv"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProbeFailed)
	assert.Equal(t, 0, orch.Count())
	assert.Empty(t, bus.events)
}

func TestStart_RunsFirstQueuedJob(t *testing.T) {
	orch, _, conv, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")

	orch.Start()

	jobs := orch.Jobs()
	assert.Equal(t, domain.JobStatusRunning, jobs[0].Status)
	assert.Equal(t, domain.JobStatusQueued, jobs[1].Status)
	assert.True(t, orch.Busy())
	require.Len(t, conv.dispatched, 1)
	assert.Equal(t, "/media/a.mkv", conv.dispatched[0].Source)

	started := bus.ofType(EventConversionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, 0, started[0].Index)
	assert.Equal(t, "/media/a.mkv", started[0].Params.Source)
}

func TestStart_WhileBusyIsNoOp(t *testing.T) {
	orch, _, conv, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")

	orch.Start()
	before := orch.Jobs()

	orch.Start()

	assert.Equal(t, before, orch.Jobs())
	assert.Len(t, conv.dispatched, 1)
}

func TestStart_EmptyQueueAnnouncesAllFinished(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)

	orch.Start()

	assert.False(t, orch.Busy())
	assert.Len(t, bus.ofType(EventAllJobsFinished), 1)
}

func TestOnCompleted_SuccessAdvancesToNextQueued(t *testing.T) {
	orch, _, conv, hist, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	orch.Start()

	orch.OnCompleted(0)

	jobs := orch.Jobs()
	assert.Equal(t, domain.JobStatusFinished, jobs[0].Status)
	assert.Equal(t, domain.JobStatusRunning, jobs[1].Status)
	assert.True(t, orch.Busy())
	assert.Len(t, conv.dispatched, 2)
	assert.Empty(t, bus.ofType(EventAllJobsFinished))

	finished := bus.ofType(EventJobFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, 0, finished[0].ExitStatus)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, domain.JobStatusFinished, hist.entries[0].Status)
}

func TestOnCompleted_FailureMarksFailedAndStillAdvances(t *testing.T) {
	orch, _, _, hist, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	orch.Start()
	orch.OnProgress(55)

	orch.OnCompleted(1)

	jobs := orch.Jobs()
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, 0, jobs[0].Progress)
	assert.Equal(t, "failed", jobs[0].Remark)
	assert.Equal(t, domain.JobStatusRunning, jobs[1].Status)

	finished := bus.ofType(EventJobFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, 1, finished[0].ExitStatus)

	require.Len(t, hist.entries, 1)
	assert.Equal(t, domain.JobStatusFailed, hist.entries[0].Status)
	assert.Equal(t, 1, hist.entries[0].ExitStatus)
}

func TestOnCompleted_LastJobGoesIdleAndAnnounces(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")
	orch.Start()

	orch.OnCompleted(0)

	assert.False(t, orch.Busy())
	assert.Equal(t, 0, runningCount(orch.Jobs()))
	assert.Len(t, bus.ofType(EventAllJobsFinished), 1)
}

func TestOnCompleted_StaleEventIgnored(t *testing.T) {
	orch, _, _, hist, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")

	orch.OnCompleted(0)

	assert.Equal(t, domain.JobStatusQueued, orch.Jobs()[0].Status)
	assert.Empty(t, hist.entries)
	assert.Empty(t, bus.ofType(EventJobFinished))
}

func TestOnProgress_ForwardsToCurrentJob(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")
	orch.Start()

	orch.OnProgress(42)

	assert.Equal(t, 42, orch.Jobs()[0].Progress)
	updates := bus.ofType(EventProgressUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, 42, updates[0].Percentage)
}

func TestOnProgress_DroppedWithoutCurrentJob(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")

	orch.OnProgress(42)

	assert.Equal(t, 0, orch.Jobs()[0].Progress)
	assert.Empty(t, bus.ofType(EventProgressUpdated))
}

func TestStop_RevertsRunningJobToQueued(t *testing.T) {
	orch, _, conv, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")
	orch.Start()
	orch.OnProgress(30)

	orch.Stop()

	job := orch.Jobs()[0]
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.False(t, orch.Busy())
	assert.Equal(t, 1, conv.halts)

	// A stopped job is eligible again: the same job relaunches.
	orch.Start()
	require.Len(t, conv.dispatched, 2)
	assert.Equal(t, conv.dispatched[0], conv.dispatched[1])
	assert.Equal(t, domain.JobStatusRunning, orch.Jobs()[0].Status)
}

func TestStop_Idempotent(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")
	orch.Start()

	orch.Stop()
	after := orch.Jobs()
	orch.Stop()

	assert.Equal(t, after, orch.Jobs())
	assert.False(t, orch.Busy())
}

func TestRemove_RefusedForRunningJob(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	orch.Start()

	assert.False(t, orch.Remove(0))
	assert.Equal(t, 2, orch.Count())
	assert.Empty(t, bus.ofType(EventJobRemoved))
}

func TestRemove_ShiftsLaterIndicesDown(t *testing.T) {
	orch, _, _, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv", "/media/c.mkv")

	assert.True(t, orch.Remove(1))

	jobs := orch.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "/media/a.mkv", jobs[0].Params.Source)
	assert.Equal(t, "/media/c.mkv", jobs[1].Params.Source)

	removed := bus.ofType(EventJobRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, 1, removed[0].Index)
}

func TestRemove_OutOfRangeRefused(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")

	assert.False(t, orch.Remove(-1))
	assert.False(t, orch.Remove(1))
	assert.Equal(t, 1, orch.Count())
}

func TestRemove_TerminalJobAllowed(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	orch.Start()
	orch.OnCompleted(0) // a finished, b running

	assert.True(t, orch.Remove(0))
	jobs := orch.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "/media/b.mkv", jobs[0].Params.Source)
	assert.Equal(t, domain.JobStatusRunning, jobs[0].Status)
}

func TestDispatchError_FailsJobAndAdvances(t *testing.T) {
	orch, _, conv, hist, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	conv.dispatchErr = errors.New("ffmpeg: executable file not found")

	orch.Start()

	jobs := orch.Jobs()
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, domain.JobStatusFailed, jobs[1].Status)
	assert.False(t, orch.Busy())
	assert.Len(t, hist.entries, 2)
	assert.Len(t, bus.ofType(EventAllJobsFinished), 1)
}

func TestScenario_ThreeJobsMixedOutcomes(t *testing.T) {
	orch, _, conv, _, bus := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv", "/media/c.mkv")

	orch.Start()
	assert.Equal(t, domain.JobStatusRunning, orch.Jobs()[0].Status)
	assert.Equal(t, 1, runningCount(orch.Jobs()))

	orch.OnCompleted(0)
	jobs := orch.Jobs()
	assert.Equal(t, domain.JobStatusFinished, jobs[0].Status)
	assert.Equal(t, domain.JobStatusRunning, jobs[1].Status)
	assert.Equal(t, 1, runningCount(jobs))

	orch.OnCompleted(1)
	jobs = orch.Jobs()
	assert.Equal(t, domain.JobStatusFailed, jobs[1].Status)
	assert.Equal(t, domain.JobStatusRunning, jobs[2].Status)
	assert.Equal(t, 1, runningCount(jobs))
	assert.Empty(t, bus.ofType(EventAllJobsFinished))

	orch.OnCompleted(0)
	jobs = orch.Jobs()
	assert.Equal(t, domain.JobStatusFinished, jobs[2].Status)
	assert.Equal(t, 0, runningCount(jobs))
	assert.False(t, orch.Busy())
	assert.Len(t, conv.dispatched, 3)
	assert.Len(t, bus.ofType(EventAllJobsFinished), 1)
}

func TestScenario_JobAddedAfterBatchIsPickedUp(t *testing.T) {
	orch, _, conv, _, _ := newTestOrchestrator(t)
	addJobs(t, orch, "/media/a.mkv")
	orch.Start()
	orch.OnCompleted(0)

	// Queue drained; a fresh job needs a new start.
	addJobs(t, orch, "/media/d.mkv")
	assert.False(t, orch.Busy())

	orch.Start()
	require.Len(t, conv.dispatched, 2)
	assert.Equal(t, "/media/d.mkv", conv.dispatched[1].Source)
}

func TestHistoryErrorDoesNotStallQueue(t *testing.T) {
	orch, _, _, hist, _ := newTestOrchestrator(t)
	hist.err = errors.New("disk full")
	addJobs(t, orch, "/media/a.mkv", "/media/b.mkv")
	orch.Start()

	orch.OnCompleted(0)

	assert.Equal(t, domain.JobStatusRunning, orch.Jobs()[1].Status)
}
