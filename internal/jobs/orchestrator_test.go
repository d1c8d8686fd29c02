package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"imagejobs/internal/adapter/repo"
	"imagejobs/internal/domain"
	"imagejobs/internal/metrics"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type fakeModel struct {
	synthesize func(ctx context.Context, prompt string) (domain.Artifact, error)
	transform  func(ctx context.Context, sourceRef, prompt string) (domain.Artifact, error)

	mu    sync.Mutex
	calls int
}

func (m *fakeModel) Synthesize(ctx context.Context, prompt string) (domain.Artifact, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.synthesize != nil {
		return m.synthesize(ctx, prompt)
	}
	return domain.Artifact{Data: pngBytes, ContentType: "image/png"}, nil
}

func (m *fakeModel) Transform(ctx context.Context, sourceRef, prompt string) (domain.Artifact, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.transform != nil {
		return m.transform(ctx, sourceRef, prompt)
	}
	return domain.Artifact{Data: pngBytes, ContentType: "image/webp"}, nil
}

type fakeStore struct {
	err error

	mu      sync.Mutex
	objects map[string]string
}

func (s *fakeStore) Put(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string]string{}
	}
	if _, exists := s.objects[key]; exists {
		return "", fmt.Errorf("key %s already written", key)
	}
	s.objects[key] = contentType
	return "https://cdn.example/" + key, nil
}

// flakyRecords fails selected status updates while delegating the rest.
type flakyRecords struct {
	*repo.MemoryJobRepository
	failCompleted bool
	failFailed    bool
	failCreate    error
}

func (r *flakyRecords) Create(ctx context.Context, job *domain.Job) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	return r.MemoryJobRepository.Create(ctx, job)
}

func (r *flakyRecords) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, fields domain.StatusUpdate) error {
	if (status == domain.JobStatusCompleted && r.failCompleted) || (status == domain.JobStatusFailed && r.failFailed) {
		return errors.New("connection reset by peer")
	}
	return r.MemoryJobRepository.UpdateStatus(ctx, id, status, fields)
}

type OrchestratorSuite struct {
	suite.Suite

	ctx     context.Context
	records *flakyRecords
	model   *fakeModel
	store   *fakeStore
	metrics *metrics.Recorder
	orch    *Orchestrator
	ids     int
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.records = &flakyRecords{MemoryJobRepository: repo.NewMemoryJobRepository()}
	s.model = &fakeModel{}
	s.store = &fakeStore{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ids = 0
	s.orch = s.build()
}

func (s *OrchestratorSuite) build() *Orchestrator {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	orch, err := NewOrchestrator(Options{
		Records: s.records,
		Model:   s.model,
		Store:   s.store,
		Metrics: s.metrics,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			base = base.Add(time.Second)
			return base
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			s.ids++
			return fmt.Sprintf("job-%03d", s.ids)
		},
	})
	s.Require().NoError(err)
	return orch
}

func (s *OrchestratorSuite) list(owner string) []JobView {
	views, err := s.orch.ListJobs(s.ctx, owner)
	s.Require().NoError(err)
	return views
}

func (s *OrchestratorSuite) TestGenerateRoundTrip() {
	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "  a red fox  ")
	s.Require().NoError(err)
	s.Equal(domain.JobStatusCompleted, res.Status)
	s.Equal("a red fox", res.Prompt)
	s.Equal("https://cdn.example/images/owner-1/job-001.png", res.ArtifactRef)

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(res.ID, views[0].ID)
	s.Equal(res.Prompt, views[0].Prompt)
	s.Equal(res.ArtifactRef, views[0].ArtifactRef)
	s.Equal(domain.JobKindGenerate, views[0].Kind)
	s.Empty(views[0].ErrorDetail)
	s.Empty(views[0].SourceArtifactRef)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsCompleted.WithLabelValues("generate")))
}

func (s *OrchestratorSuite) TestEditStoresWithDeclaredType() {
	var gotSource, gotPrompt string
	s.model.transform = func(_ context.Context, sourceRef, prompt string) (domain.Artifact, error) {
		gotSource, gotPrompt = sourceRef, prompt
		return domain.Artifact{Data: pngBytes, ContentType: "image/webp"}, nil
	}

	res, err := s.orch.SubmitEdit(s.ctx, "owner-1", "https://img.example/cat.jpg", "add a hat")
	s.Require().NoError(err)
	s.Equal("https://img.example/cat.jpg", gotSource)
	s.Equal("add a hat", gotPrompt)
	s.True(strings.HasSuffix(res.ArtifactRef, "/images/owner-1/job-001.webp"))
	s.Equal("image/webp", s.store.objects["images/owner-1/job-001.webp"])

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobKindEdit, views[0].Kind)
	s.Equal("https://img.example/cat.jpg", views[0].SourceArtifactRef)
}

func (s *OrchestratorSuite) TestEmptyPromptCreatesNoRecord() {
	before := s.list("owner-1")

	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "   ")
	s.ErrorIs(err, domain.ErrValidation)

	s.Equal(before, s.list("owner-1"))
	s.Zero(s.model.calls)
}

func (s *OrchestratorSuite) TestMalformedSourceRejectedBeforeCreate() {
	for _, ref := range []string{"", "not a url", "/relative/path.png", "ftp://host/x.png"} {
		_, err := s.orch.SubmitEdit(s.ctx, "owner-1", ref, "brighten")
		s.ErrorIs(err, domain.ErrValidation, "ref %q", ref)
	}
	s.Empty(s.list("owner-1"))
	s.Zero(s.model.calls)
	s.Zero(s.ids, "no id should be minted for rejected requests")
}

func (s *OrchestratorSuite) TestNoPayloadMarksFailed() {
	noPayload := fmt.Errorf("%w: finish reason SAFETY", domain.ErrNoPayload)
	s.model.synthesize = func(context.Context, string) (domain.Artifact, error) {
		return domain.Artifact{}, noPayload
	}

	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.Require().Error(err)
	s.Same(noPayload, err)
	s.Equal(domain.JobStatusFailed, res.Status)

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobStatusFailed, views[0].Status)
	s.NotEmpty(views[0].ErrorDetail)
	s.Empty(views[0].ArtifactRef)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsFailed.WithLabelValues("generate", "no_payload")))
}

func (s *OrchestratorSuite) TestFailureDetailDropsNULBytes() {
	s.model.synthesize = func(context.Context, string) (domain.Artifact, error) {
		return domain.Artifact{}, errors.New("status 500: bad\x00body")
	}
	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.Require().Error(err)

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobStatusFailed, views[0].Status)
	s.NotContains(views[0].ErrorDetail, "\x00")
	s.Contains(views[0].ErrorDetail, "badbody")
}

func (s *OrchestratorSuite) TestUnclassifiedModelErrorIsUpstream() {
	s.model.synthesize = func(context.Context, string) (domain.Artifact, error) {
		return domain.Artifact{}, errors.New("dial tcp: i/o timeout")
	}
	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.ErrorIs(err, domain.ErrUpstream)
	s.Contains(err.Error(), "i/o timeout")
}

func (s *OrchestratorSuite) TestSourceFetchFailureMarksFailed() {
	s.model.transform = func(context.Context, string, string) (domain.Artifact, error) {
		return domain.Artifact{}, fmt.Errorf("%w: status 404", domain.ErrSourceFetch)
	}
	_, err := s.orch.SubmitEdit(s.ctx, "owner-1", "https://img.example/gone.jpg", "fix")
	s.ErrorIs(err, domain.ErrSourceFetch)

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobStatusFailed, views[0].Status)
	s.Contains(views[0].ErrorDetail, "404")
}

func (s *OrchestratorSuite) TestStorageFailureMarksFailed() {
	s.store.err = errors.New("disk full")

	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.ErrorIs(err, domain.ErrStorage)
	s.Equal(1, s.model.calls)

	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobStatusFailed, views[0].Status)
	s.Contains(views[0].ErrorDetail, "disk full")
	s.Empty(views[0].ArtifactRef)
}

func (s *OrchestratorSuite) TestCreateFailureStopsPipeline() {
	s.records.failCreate = errors.New("db down")

	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.ErrorIs(err, domain.ErrRecordStore)
	s.Zero(s.model.calls)
	s.Empty(s.store.objects)
}

func (s *OrchestratorSuite) TestFinalUpdateFailureLeavesPendingOrphan() {
	s.records.failCompleted = true

	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.ErrorIs(err, domain.ErrRecordStore)
	s.Equal(domain.JobStatusPending, res.Status)

	s.Contains(s.store.objects, "images/owner-1/job-001.png", "artifact is written")
	views := s.list("owner-1")
	s.Require().Len(views, 1)
	s.Equal(domain.JobStatusPending, views[0].Status)
	s.Empty(views[0].ArtifactRef)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsOrphaned))
}

func (s *OrchestratorSuite) TestMarkFailedFailureSurfacesOriginalError() {
	s.records.failFailed = true
	upstream := fmt.Errorf("%w: gemini status 500", domain.ErrUpstream)
	s.model.synthesize = func(context.Context, string) (domain.Artifact, error) {
		return domain.Artifact{}, upstream
	}

	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.Same(upstream, err)
	s.Equal(domain.JobStatusPending, res.Status)
}

func (s *OrchestratorSuite) TestCancelledCallerStillReachesTerminal() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.model.synthesize = func(ctx context.Context, _ string) (domain.Artifact, error) {
		cancel()
		if ctx.Err() != nil {
			return domain.Artifact{}, ctx.Err()
		}
		return domain.Artifact{Data: pngBytes}, nil
	}

	res, err := s.orch.SubmitGenerate(ctx, "owner-1", "a cat")
	s.Require().NoError(err)
	s.Equal(domain.JobStatusCompleted, res.Status)
}

func (s *OrchestratorSuite) TestStatusNeverRegresses() {
	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.Require().NoError(err)

	err = s.records.UpdateStatus(s.ctx, res.ID, domain.JobStatusFailed, domain.StatusUpdate{ErrorDetail: "late"})
	s.ErrorIs(err, domain.ErrInvalidTransition)

	view, err := s.orch.GetJob(s.ctx, "owner-1", res.ID)
	s.Require().NoError(err)
	s.Equal(domain.JobStatusCompleted, view.Status)
}

func (s *OrchestratorSuite) TestGetJobHidesOtherOwners() {
	res, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "a cat")
	s.Require().NoError(err)

	_, err = s.orch.GetJob(s.ctx, "owner-2", res.ID)
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.orch.GetJob(s.ctx, "owner-1", "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *OrchestratorSuite) TestStats() {
	_, err := s.orch.SubmitGenerate(s.ctx, "owner-1", "ok")
	s.Require().NoError(err)
	s.store.err = errors.New("boom")
	_, _ = s.orch.SubmitGenerate(s.ctx, "owner-1", "fails")

	stats, err := s.orch.Stats(s.ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(domain.JobStats{Total: 2, Completed: 1, Failed: 1}, stats)
}

func (s *OrchestratorSuite) TestOutcomeFieldsMatchStatus() {
	_, _ = s.orch.SubmitGenerate(s.ctx, "owner-1", "ok")
	s.model.synthesize = func(context.Context, string) (domain.Artifact, error) {
		return domain.Artifact{}, domain.ErrNoPayload
	}
	_, _ = s.orch.SubmitGenerate(s.ctx, "owner-1", "bad")

	for _, v := range s.list("owner-1") {
		switch v.Status {
		case domain.JobStatusCompleted:
			s.NotEmpty(v.ArtifactRef)
			s.Empty(v.ErrorDetail)
		case domain.JobStatusFailed:
			s.Empty(v.ArtifactRef)
			s.NotEmpty(v.ErrorDetail)
		default:
			s.Failf("unexpected status", "%s", v.Status)
		}
	}
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func TestConcurrentSubmissionsAreIndependent(t *testing.T) {
	records := repo.NewMemoryJobRepository()
	store := &fakeStore{}
	release := make(chan struct{})
	model := &fakeModel{synthesize: func(_ context.Context, prompt string) (domain.Artifact, error) {
		<-release
		return domain.Artifact{Data: []byte(prompt), ContentType: "image/png"}, nil
	}}
	orch, err := NewOrchestrator(Options{Records: records, Model: model, Store: store})
	require.NoError(t, err)

	results := make([]Result, 2)
	var g errgroup.Group
	for i, prompt := range []string{"first", "second"} {
		i, prompt := i, prompt
		g.Go(func() error {
			res, err := orch.SubmitGenerate(context.Background(), "owner-1", prompt)
			results[i] = res
			return err
		})
	}
	close(release)
	require.NoError(t, g.Wait())

	assert.NotEqual(t, results[0].ID, results[1].ID)
	assert.NotEqual(t, results[0].ArtifactRef, results[1].ArtifactRef)

	views, err := orch.ListJobs(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	byID := map[string]JobView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	for _, res := range results {
		v, ok := byID[res.ID]
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusCompleted, v.Status)
		assert.Equal(t, res.ArtifactRef, v.ArtifactRef)
		assert.Equal(t, res.Prompt, v.Prompt)
	}
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Options{Model: &fakeModel{}, Store: &fakeStore{}})
	assert.Error(t, err)
}

func TestStorageKey(t *testing.T) {
	cases := map[string]struct {
		owner, id, ext string
		want           string
	}{
		"plain":     {"user-1", "abc", "png", "images/user-1/abc.png"},
		"slashes":   {"a/../b", "abc", "jpg", "images/a_.._b/abc.jpg"},
		"dots only": {"..", "abc", "png", "images/_/abc.png"},
		"no ext":    {"u", "abc", "", "images/u/abc.png"},
		"email":     {"me@example.com", "abc", "webp", "images/me_example.com/abc.webp"},
	}
	for name, tc := range cases {
		if got := StorageKey(tc.owner, tc.id, tc.ext); got != tc.want {
			t.Fatalf("%s: StorageKey = %q, want %q", name, got, tc.want)
		}
	}
}

func TestReason(t *testing.T) {
	if got := Reason(domain.Wrap(domain.ErrStorage, errors.New("x"))); got != "storage" {
		t.Fatalf("Reason = %q", got)
	}
	if got := Reason(&domain.ValidationError{Field: "prompt", Message: "is required"}); got != "validation" {
		t.Fatalf("Reason = %q", got)
	}
}

func TestErrorDetail(t *testing.T) {
	long := strings.Repeat("é", maxErrorDetail)
	got := errorDetail(errors.New(long))
	assert.LessOrEqual(t, len(got), maxErrorDetail)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "unknown failure", errorDetail(errors.New(" \x00 ")))
	assert.Equal(t, "ab", errorDetail(errors.New("a\x00b")))
}
