package domain

import (
	"fmt"
	"math"
	"time"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether the status is absorbing: finished and failed
// jobs never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

type Preset string

const (
	PresetAV1  Preset = "av1"
	PresetH264 Preset = "h264"
	PresetOpus Preset = "opus"
)

func (p Preset) Valid() bool {
	switch p {
	case PresetAV1, PresetH264, PresetOpus:
		return true
	}
	return false
}

// Extension returns the container extension produced by the preset.
func (p Preset) Extension() string {
	switch p {
	case PresetAV1:
		return ".webm"
	case PresetH264:
		return ".mp4"
	case PresetOpus:
		return ".ogg"
	}
	return ""
}

// ConversionParameters describes one conversion request. The record is
// immutable once a job is created.
type ConversionParameters struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Preset      Preset `json:"preset"`
	Fps         int    `json:"fps"`
}

// Job is a single conversion task: immutable parameters plus mutable
// lifecycle status. Progress and Remark are presentation-facing and are
// written only by the orchestrator.
type Job struct {
	ID        int64                `json:"id"`
	Params    ConversionParameters `json:"params"`
	Duration  Duration             `json:"duration"`
	Status    JobStatus            `json:"status"`
	Progress  int                  `json:"progress"`
	Remark    string               `json:"remark,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Duration is a probed media duration broken into display components.
type Duration struct {
	Hours   int     `json:"hours"`
	Minutes int     `json:"minutes"`
	Seconds float64 `json:"seconds"`
}

func DurationFromSeconds(seconds float64) Duration {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	return Duration{
		Hours:   whole / 3600,
		Minutes: (whole % 3600) / 60,
		Seconds: seconds - float64(whole/60*60),
	}
}

func (d Duration) TotalSeconds() float64 {
	return float64(d.Hours)*3600 + float64(d.Minutes)*60 + d.Seconds
}

func (d Duration) String() string {
	secs := int(math.Round(d.Seconds))
	return fmt.Sprintf("%02d:%02d:%02d", d.Hours, d.Minutes, secs)
}

// HistoryEntry is one terminal job outcome recorded to the history store.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"job_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Status      JobStatus `json:"status"`
	ExitStatus  int       `json:"exit_status"`
	FinishedAt  time.Time `json:"finished_at"`
}
