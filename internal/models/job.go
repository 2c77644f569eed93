package models

import (
	"strconv"
	"time"
)

// JobStatus represents the lifecycle state of a process job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusTerminated JobStatus = "terminated"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusTerminated
}

// Job is a persisted unit of background work.
type Job struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"` // percent, 0-100
	Text        string     `json:"text,omitempty"`
	Images      []string   `json:"images,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobResult is what an executor produces for a completed job.
type JobResult struct {
	Text   string
	Images []string
}

// UnixSeconds renders t as seconds since the epoch with a fractional part,
// e.g. "1712345678.123456".
func UnixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
}
