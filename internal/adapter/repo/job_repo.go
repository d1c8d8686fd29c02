package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"imagejobs/internal/domain"
	"imagejobs/internal/infra"
	"imagejobs/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository over the given executor.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a pending job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.Wrap(domain.ErrRecordStore, errors.New("nil job"))
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: new jobs must be pending, got %s", domain.ErrInvalidTransition, job.Status)
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageJob,
		job.ID,
		job.OwnerID,
		string(job.Kind),
		job.Prompt,
		job.SourceArtifactRef,
		job.CreatedAt,
	)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, job.ID)
		}
		return domain.Wrap(domain.ErrRecordStore, err)
	}
	return nil
}

// UpdateStatus moves a pending job to a terminal state.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, fields domain.StatusUpdate) error {
	if err := domain.CheckTransition(domain.JobStatusPending, status, fields); err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFinishImageJob, jobID, string(status), fields.ArtifactRef, fields.ErrorDetail)
	if err != nil {
		return domain.Wrap(domain.ErrRecordStore, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	if err := r.sql.QueryRow(ctx, sqlinline.QImageJobStatus, jobID).Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return domain.Wrap(domain.ErrRecordStore, err)
	}
	if domain.JobStatus(current) == domain.JobStatusPending {
		// The guarded update missed a row that still reads pending.
		return domain.Wrap(domain.ErrRecordStore, fmt.Errorf("job %s: update matched no rows while pending", jobID))
	}
	return domain.CheckTransition(domain.JobStatus(current), status, fields)
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectImageJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return nil, domain.Wrap(domain.ErrRecordStore, err)
	}
	return job, nil
}

// ListByOwner returns the owner's jobs, newest first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListImageJobsByOwner, ownerID)
	if err != nil {
		return nil, domain.Wrap(domain.ErrRecordStore, err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, domain.Wrap(domain.ErrRecordStore, err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrRecordStore, err)
	}
	return jobs, nil
}

// Stats counts the owner's jobs per status.
func (r *JobRepositoryPG) Stats(ctx context.Context, ownerID string) (domain.JobStats, error) {
	var s domain.JobStats
	err := r.sql.QueryRow(ctx, sqlinline.QImageJobStats, ownerID).Scan(&s.Total, &s.Pending, &s.Completed, &s.Failed)
	if err != nil {
		return domain.JobStats{}, domain.Wrap(domain.ErrRecordStore, err)
	}
	return s, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		kind   string
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&kind,
		&job.Prompt,
		&job.SourceArtifactRef,
		&status,
		&job.ArtifactRef,
		&job.ErrorDetail,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
