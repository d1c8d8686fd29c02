package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobKind enumerates the request kinds a job can be created from.
type JobKind string

const (
	JobKindGenerate JobKind = "generate"
	JobKindEdit     JobKind = "edit"
)

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	return k == JobKindGenerate || k == JobKindEdit
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one tracked generate-or-edit request and its lifecycle record.
type Job struct {
	ID                string
	OwnerID           string
	Kind              JobKind
	Prompt            string
	SourceArtifactRef string
	Status            JobStatus
	ArtifactRef       string
	ErrorDetail       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPendingJob builds the record inserted before any external call is made.
func NewPendingJob(id, ownerID string, kind JobKind, prompt, sourceRef string, now time.Time) *Job {
	return &Job{
		ID:                id,
		OwnerID:           ownerID,
		Kind:              kind,
		Prompt:            prompt,
		SourceArtifactRef: sourceRef,
		Status:            JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// StatusUpdate carries the fields written by a terminal transition.
type StatusUpdate struct {
	ArtifactRef string
	ErrorDetail string
}

// CheckTransition validates moving a record from `from` to the terminal state `to`
// with the given fields. It is shared by every JobRepository implementation.
func CheckTransition(from, to JobStatus, fields StatusUpdate) error {
	if from.Terminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidTransition, from)
	}
	switch to {
	case JobStatusCompleted:
		if strings.TrimSpace(fields.ArtifactRef) == "" {
			return fmt.Errorf("%w: completed requires an artifact reference", ErrInvalidTransition)
		}
		if fields.ErrorDetail != "" {
			return fmt.Errorf("%w: completed must not carry an error detail", ErrInvalidTransition)
		}
	case JobStatusFailed:
		if strings.TrimSpace(fields.ErrorDetail) == "" {
			return fmt.Errorf("%w: failed requires an error detail", ErrInvalidTransition)
		}
		if fields.ArtifactRef != "" {
			return fmt.Errorf("%w: failed must not carry an artifact reference", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: %q is not a terminal status", ErrInvalidTransition, to)
	}
	return nil
}

// Apply performs a checked terminal transition on j.
func (j *Job) Apply(to JobStatus, fields StatusUpdate, now time.Time) error {
	if err := CheckTransition(j.Status, to, fields); err != nil {
		return err
	}
	j.Status = to
	j.ArtifactRef = fields.ArtifactRef
	j.ErrorDetail = fields.ErrorDetail
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Microsecond)
	}
	j.UpdatedAt = now
	return nil
}

// JobStats counts an owner's jobs per status.
type JobStats struct {
	Total     int64
	Pending   int64
	Completed int64
	Failed    int64
}
