package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"imagejobs/internal/domain"
)

// MemoryJobRepository keeps job records in process memory. It backs the
// service when no DATABASE_URL is configured and doubles as a test fake.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewMemoryJobRepository returns an empty in-memory repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*domain.Job),
		now:  time.Now,
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	if job == nil {
		return domain.Wrap(domain.ErrRecordStore, errors.New("nil job"))
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: new jobs must be pending, got %s", domain.ErrInvalidTransition, job.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, job.ID)
	}
	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

func (r *MemoryJobRepository) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, fields domain.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return job.Apply(status, fields, r.now())
}

func (r *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	out := *job
	return &out, nil
}

// ListByOwner returns the owner's jobs ordered newest first, ties by id.
func (r *MemoryJobRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Job, error) {
	r.mu.RLock()
	jobs := make([]domain.Job, 0)
	for _, job := range r.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, *job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

func (r *MemoryJobRepository) Stats(_ context.Context, ownerID string) (domain.JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s domain.JobStats
	for _, job := range r.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		s.Total++
		switch job.Status {
		case domain.JobStatusPending:
			s.Pending++
		case domain.JobStatusCompleted:
			s.Completed++
		case domain.JobStatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

var _ domain.JobRepository = (*MemoryJobRepository)(nil)
