package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of the download controller
type State string

const (
	StateIdle           State = "IDLE"
	StateStarting       State = "STARTING"
	StatePolling        State = "POLLING"
	StatePostprocessing State = "POSTPROCESSING"
	StateTransferring   State = "TRANSFERRING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// IsActive returns true while a job is in flight
func (s State) IsActive() bool {
	switch s {
	case StateStarting, StatePolling, StatePostprocessing, StateTransferring:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for DONE and FAILED
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// StatusTag is the job status reported by the backend
type StatusTag string

const (
	TagInProgress     StatusTag = "IN_PROGRESS"
	TagPostprocessing StatusTag = "POSTPROCESSING"
	TagFinished       StatusTag = "FINISHED"
	TagError          StatusTag = "ERROR"
)

// Known reports whether the tag belongs to the set the client understands
func (t StatusTag) Known() bool {
	switch t {
	case TagInProgress, TagPostprocessing, TagFinished, TagError:
		return true
	default:
		return false
	}
}

// JobHandle is returned by the backend when a job is created
type JobHandle struct {
	ID string
}

// StatusReport is a single status snapshot for a job
type StatusReport struct {
	Status   StatusTag `json:"status"`
	Progress float64   `json:"progress"`
}

// TransferResult holds a retrieved artifact. Disposition is empty when the
// backend sent no content-disposition header.
type TransferResult struct {
	Data        []byte
	Disposition string
}

// Job is the locally tracked in-flight download
type Job struct {
	RunID     string
	ID        string
	URL       string
	State     State
	Progress  float64
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewJob creates a job for url; the backend id is assigned later
func NewJob(url string) *Job {
	now := time.Now()
	return &Job{
		RunID:     uuid.New().String(),
		URL:       url,
		State:     StateStarting,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState moves the job to state
func (j *Job) SetState(state State) {
	j.State = state
	j.UpdatedAt = time.Now()
}

// UpdateProgress records the latest reported progress, clamped to [0, 100].
// Values are advisory and may go backwards.
func (j *Job) UpdateProgress(progress float64) {
	j.Progress = ClampProgress(progress)
	j.UpdatedAt = time.Now()
}

// ClampProgress limits a progress value to the [0, 100] range
func ClampProgress(progress float64) float64 {
	if math.IsNaN(progress) || progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
