package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imagejobs/internal/domain"
	"imagejobs/internal/infra"
	"imagejobs/internal/metrics"
)

// maxErrorDetail bounds the failure text persisted on a job record.
const maxErrorDetail = 2000

// ModelClient produces artifact bytes from the generative model.
type ModelClient interface {
	Synthesize(ctx context.Context, prompt string) (domain.Artifact, error)
	Transform(ctx context.Context, sourceRef, prompt string) (domain.Artifact, error)
}

// ArtifactStore persists artifact bytes and returns a resolvable reference.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Options wires the orchestrator's collaborators. Records, Model and Store are
// required; the rest fall back to defaults.
type Options struct {
	Records   domain.JobRepository
	Model     ModelClient
	Store     ArtifactStore
	Validator *domain.Validator
	Logger    *infra.Logger
	Metrics   *metrics.Recorder
	Now       func() time.Time
	NewID     func() string
}

// Orchestrator runs the validate, record, invoke, store, finalize sequence
// for generate and edit submissions.
type Orchestrator struct {
	records   domain.JobRepository
	model     ModelClient
	store     ArtifactStore
	validator *domain.Validator
	logger    infra.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
	newID     func() string
}

// Result is returned to the submitter. On failure after the record exists,
// ID is populated alongside the error so callers can reference the job.
type Result struct {
	ID          string           `json:"id"`
	ArtifactRef string           `json:"artifact_ref,omitempty"`
	Prompt      string           `json:"prompt"`
	Status      domain.JobStatus `json:"status"`
}

// JobView is the listing shape of a job record.
type JobView struct {
	ID                string           `json:"id"`
	Kind              domain.JobKind   `json:"kind"`
	Prompt            string           `json:"prompt"`
	Status            domain.JobStatus `json:"status"`
	ArtifactRef       string           `json:"artifact_ref,omitempty"`
	SourceArtifactRef string           `json:"source_artifact_ref,omitempty"`
	ErrorDetail       string           `json:"error_detail,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Records == nil || opts.Model == nil || opts.Store == nil {
		return nil, errors.New("jobs: records, model and store are required")
	}
	o := &Orchestrator{
		records:   opts.Records,
		model:     opts.Model,
		store:     opts.Store,
		validator: opts.Validator,
		metrics:   opts.Metrics,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if opts.Logger != nil {
		o.logger = *opts.Logger
	} else {
		o.logger = zerolog.New(io.Discard)
	}
	if o.validator == nil {
		o.validator = domain.NewValidator(nil)
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// SubmitGenerate synthesizes a new artifact from prompt on behalf of ownerID.
func (o *Orchestrator) SubmitGenerate(ctx context.Context, ownerID, prompt string) (Result, error) {
	req, err := o.validator.Generate(domain.GenerateRequest{OwnerID: ownerID, Prompt: prompt})
	if err != nil {
		return Result{}, err
	}
	job := domain.NewPendingJob(o.newID(), req.OwnerID, domain.JobKindGenerate, req.Prompt, "", o.now())
	return o.run(ctx, job)
}

// SubmitEdit transforms the artifact at sourceRef according to prompt.
func (o *Orchestrator) SubmitEdit(ctx context.Context, ownerID, sourceRef, prompt string) (Result, error) {
	req, err := o.validator.Edit(domain.EditRequest{OwnerID: ownerID, SourceArtifactRef: sourceRef, Prompt: prompt})
	if err != nil {
		return Result{}, err
	}
	job := domain.NewPendingJob(o.newID(), req.OwnerID, domain.JobKindEdit, req.Prompt, req.SourceArtifactRef, o.now())
	return o.run(ctx, job)
}

func (o *Orchestrator) run(ctx context.Context, job *domain.Job) (Result, error) {
	log := infra.WithJob(o.logger, job.ID, job.OwnerID).With().Str("kind", string(job.Kind)).Logger()

	if err := o.records.Create(ctx, job); err != nil {
		log.Error().Err(err).Msg("jobs: create record failed")
		return Result{}, ensure(domain.ErrRecordStore, err)
	}
	o.metrics.Submitted(string(job.Kind))
	log.Info().Msg("jobs: pending")

	// The record exists; finish it even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	artifact, err := o.invoke(ctx, job)
	if err != nil {
		return o.fail(ctx, log, job, err, started)
	}

	key := StorageKey(job.OwnerID, job.ID, artifact.Extension())
	ref, err := o.store.Put(ctx, key, artifact.Data, artifact.ImageType())
	if err != nil {
		return o.fail(ctx, log, job, ensure(domain.ErrStorage, err), started)
	}

	if err := o.records.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, domain.StatusUpdate{ArtifactRef: ref}); err != nil {
		// Known window: the artifact is stored but the record stays pending.
		log.Error().Err(err).
			Str("storage_key", key).
			Str("artifact_ref", ref).
			Msg("jobs: artifact orphaned, record left pending")
		o.metrics.Orphaned()
		return Result{ID: job.ID, Prompt: job.Prompt, Status: domain.JobStatusPending}, ensure(domain.ErrRecordStore, err)
	}

	o.metrics.Completed(string(job.Kind), time.Since(started))
	log.Info().Str("artifact_ref", ref).Int("bytes", len(artifact.Data)).Msg("jobs: completed")
	return Result{
		ID:          job.ID,
		ArtifactRef: ref,
		Prompt:      job.Prompt,
		Status:      domain.JobStatusCompleted,
	}, nil
}

func (o *Orchestrator) invoke(ctx context.Context, job *domain.Job) (domain.Artifact, error) {
	var (
		artifact domain.Artifact
		err      error
	)
	switch job.Kind {
	case domain.JobKindEdit:
		artifact, err = o.model.Transform(ctx, job.SourceArtifactRef, job.Prompt)
	default:
		artifact, err = o.model.Synthesize(ctx, job.Prompt)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoPayload) || errors.Is(err, domain.ErrSourceFetch) {
			return domain.Artifact{}, err
		}
		return domain.Artifact{}, ensure(domain.ErrUpstream, err)
	}
	if len(artifact.Data) == 0 {
		return domain.Artifact{}, fmt.Errorf("%w: empty artifact", domain.ErrNoPayload)
	}
	return artifact, nil
}

// fail records cause on the job and returns it unchanged. A failure to mark
// the record is logged; cause is still what the caller sees.
func (o *Orchestrator) fail(ctx context.Context, log zerolog.Logger, job *domain.Job, cause error, started time.Time) (Result, error) {
	res := Result{ID: job.ID, Prompt: job.Prompt, Status: domain.JobStatusFailed}
	detail := errorDetail(cause)

	if err := o.records.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, domain.StatusUpdate{ErrorDetail: detail}); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("jobs: could not mark job failed")
		res.Status = domain.JobStatusPending
	}

	o.metrics.Failed(string(job.Kind), Reason(cause), time.Since(started))
	log.Warn().Err(cause).Str("reason", Reason(cause)).Msg("jobs: failed")
	return res, cause
}

// ListJobs returns the owner's jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, ownerID string) ([]JobView, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	records, err := o.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, ensure(domain.ErrRecordStore, err)
	}
	views := make([]JobView, 0, len(records))
	for i := range records {
		views = append(views, viewOf(&records[i]))
	}
	return views, nil
}

// GetJob returns one of the owner's jobs. Jobs owned by someone else are
// reported as not found.
func (o *Orchestrator) GetJob(ctx context.Context, ownerID, jobID string) (JobView, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return JobView{}, err
	}
	job, err := o.records.GetByID(ctx, strings.TrimSpace(jobID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return JobView{}, err
		}
		return JobView{}, ensure(domain.ErrRecordStore, err)
	}
	if job.OwnerID != ownerID {
		return JobView{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return viewOf(job), nil
}

// Stats counts the owner's jobs per status.
func (o *Orchestrator) Stats(ctx context.Context, ownerID string) (domain.JobStats, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return domain.JobStats{}, err
	}
	s, err := o.records.Stats(ctx, ownerID)
	if err != nil {
		return domain.JobStats{}, ensure(domain.ErrRecordStore, err)
	}
	return s, nil
}

func viewOf(j *domain.Job) JobView {
	return JobView{
		ID:                j.ID,
		Kind:              j.Kind,
		Prompt:            j.Prompt,
		Status:            j.Status,
		ArtifactRef:       j.ArtifactRef,
		SourceArtifactRef: j.SourceArtifactRef,
		ErrorDetail:       j.ErrorDetail,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func requireOwner(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", &domain.ValidationError{Field: "owner_id", Message: "is required"}
	}
	return ownerID, nil
}

// ensure tags err with condition unless it already matches.
func ensure(condition, err error) error {
	if errors.Is(err, condition) {
		return err
	}
	return domain.Wrap(condition, err)
}

func errorDetail(err error) string {
	// Postgres text columns reject NUL bytes.
	detail := strings.TrimSpace(strings.ReplaceAll(err.Error(), "\x00", ""))
	if detail == "" {
		detail = "unknown failure"
	}
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	return strings.ToValidUTF8(detail, "")
}

// Reason maps a pipeline error to a short, stable label.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNoPayload):
		return "no_payload"
	case errors.Is(err, domain.ErrSourceFetch):
		return "source_fetch"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRecordStore):
		return "record_store"
	default:
		return "internal"
	}
}
