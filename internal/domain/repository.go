package domain

import "context"

// JobRepository defines persistence for job records.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, fields StatusUpdate) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Job, error)
	Stats(ctx context.Context, ownerID string) (JobStats, error)
}
