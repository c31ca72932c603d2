package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convq/internal/domain"
)

func TestSSEWrite_SingleLine(t *testing.T) {
	rec := httptest.NewRecorder()
	sseWrite(rec, "progress_updated", `{"job_id":1,"percentage":50}`)

	assert.Equal(t, "event: progress_updated\ndata: {\"job_id\":1,\"percentage\":50}\n\n", rec.Body.String())
}

func TestSSEWrite_MultiLineData(t *testing.T) {
	rec := httptest.NewRecorder()
	sseWrite(rec, "queue", "line1\nline2")

	assert.Equal(t, "event: queue\ndata: line1\ndata: line2\n\n", rec.Body.String())
}

func TestSendKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	sendKeepAlive(rec)

	assert.Equal(t, ": keep-alive\n\n", rec.Body.String())
}

func TestSendSnapshot(t *testing.T) {
	queue := &fakeQueue{
		jobs: []domain.Job{
			{ID: 1, Status: domain.JobStatusRunning, Progress: 40},
			{ID: 2, Status: domain.JobStatusQueued},
		},
		busy: true,
	}
	h := NewSSEHandler(nil, queue)

	rec := httptest.NewRecorder()
	require.NoError(t, h.sendSnapshot(rec))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: queue\n"))

	payload := strings.TrimPrefix(strings.Split(body, "\n")[1], "data: ")
	var snapshot struct {
		Jobs []domain.Job `json:"jobs"`
		Busy bool         `json:"busy"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &snapshot))
	assert.True(t, snapshot.Busy)
	require.Len(t, snapshot.Jobs, 2)
	assert.Equal(t, 40, snapshot.Jobs[0].Progress)
}
