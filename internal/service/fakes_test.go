package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
)

// In-memory repository fakes with call counters so tests can assert batch
// write guarantees without a database.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeRepos() (*repository.Repositories, *fakeState) {
	st := &fakeState{
		projects:     make(map[string]*models.Project),
		jobs:         make(map[string]*models.CrawlJob),
		pages:        make(map[string]*models.Page),
		scores:       make(map[string]*models.PageScore),
		integrations: make(map[string]*models.Integration),
		cache:        make(map[string]*models.CachedJudgment),
	}
	return &repository.Repositories{
		Project:      &fakeProjectRepo{st: st},
		CrawlJob:     &fakeJobRepo{st: st},
		Page:         &fakePageRepo{st: st},
		PageScore:    &fakeScoreRepo{st: st},
		Issue:        &fakeIssueRepo{st: st},
		Enrichment:   &fakeEnrichmentRepo{st: st},
		Integration:  &fakeIntegrationRepo{st: st},
		ContentCache: &fakeCacheRepo{st: st},
	}, st
}

type fakeState struct {
	mu sync.Mutex

	projects     map[string]*models.Project
	jobs         map[string]*models.CrawlJob
	pages        map[string]*models.Page
	scores       map[string]*models.PageScore // keyed by page ID
	issues       []*models.Issue
	enrichments  []*models.EnrichmentResult
	integrations map[string]*models.Integration
	cache        map[string]*models.CachedJudgment

	pageBatchCalls       int
	scoreBatchCalls      int
	issueBatchCalls      int
	enrichmentBatchCalls int
	cacheGets            int
	cachePuts            int
	tokenUpdates         int
	lastSyncedUpdates    int
}

type fakeProjectRepo struct{ st *fakeState }

func (r *fakeProjectRepo) Create(_ context.Context, p *models.Project) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.projects[p.ID] = p
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id string) (*models.Project, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.projects[id], nil
}

func (r *fakeProjectRepo) GetByDomain(_ context.Context, domain string) (*models.Project, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, p := range r.st.projects {
		if p.Domain == domain {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeProjectRepo) List(_ context.Context, _, _ int) ([]*models.Project, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]*models.Project, 0, len(r.st.projects))
	for _, p := range r.st.projects {
		out = append(out, p)
	}
	return out, nil
}

type fakeJobRepo struct{ st *fakeState }

func (r *fakeJobRepo) Create(_ context.Context, job *models.CrawlJob) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *job
	r.st.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id string) (*models.CrawlJob, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	job, ok := r.st.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) GetByProjectID(_ context.Context, projectID string, _, _ int) ([]*models.CrawlJob, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.CrawlJob
	for _, j := range r.st.jobs {
		if j.ProjectID == projectID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) Transition(_ context.Context, id string, from []models.JobStatus, to models.JobStatus) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	job, ok := r.st.jobs[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if job.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = to
	job.UpdatedAt = now
	if (to == models.JobStatusCrawling || to == models.JobStatusScoring) && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if to.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	return true, nil
}

func (r *fakeJobRepo) Fail(_ context.Context, id, message string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	job, ok := r.st.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (r *fakeJobRepo) Cancel(_ context.Context, id string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	job, ok := r.st.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (r *fakeJobRepo) UpdateCounters(_ context.Context, id string, pagesFound, crawledDelta, scoredDelta int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	job, ok := r.st.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return nil
	}
	if pagesFound > job.PagesFound {
		job.PagesFound = pagesFound
	}
	job.PagesCrawled += crawledDelta
	job.PagesScored += scoredDelta
	if job.PagesScored > job.PagesFound {
		job.PagesScored = job.PagesFound
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeJobRepo) MarkStaleRunningJobsFailed(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakePageRepo struct{ st *fakeState }

func (r *fakePageRepo) CreateBatch(_ context.Context, pages []*models.Page) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.pageBatchCalls++
	for _, p := range pages {
		replaced := false
		for _, existing := range r.st.pages {
			if existing.JobID == p.JobID && existing.URL == p.URL {
				existing.StatusCode = p.StatusCode
				existing.Title = p.Title
				existing.MetaDescription = p.MetaDescription
				existing.WordCount = p.WordCount
				existing.ContentHash = p.ContentHash
				existing.HTMLKey = p.HTMLKey
				existing.PerfAuditKey = p.PerfAuditKey
				replaced = true
				break
			}
		}
		if !replaced {
			cp := *p
			r.st.pages[p.ID] = &cp
		}
	}
	return nil
}

func (r *fakePageRepo) GetByID(_ context.Context, id string) (*models.Page, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	p, ok := r.st.pages[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePageRepo) GetByJobID(_ context.Context, jobID string) ([]*models.Page, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Page
	for _, p := range r.st.pages {
		if p.JobID == jobID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeScoreRepo struct{ st *fakeState }

func (r *fakeScoreRepo) CreateBatch(_ context.Context, scores []*models.PageScore) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.scoreBatchCalls++
	for _, s := range scores {
		cp := *s
		r.st.scores[s.PageID] = &cp
	}
	return nil
}

func (r *fakeScoreRepo) GetByPageID(_ context.Context, pageID string) (*models.PageScore, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.scores[pageID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeScoreRepo) GetByJobID(_ context.Context, jobID string) ([]*models.PageScore, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.PageScore
	for _, s := range r.st.scores {
		if s.JobID == jobID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScoreRepo) UpdateContentJudgment(_ context.Context, pageID string, content, overall int, grade models.Grade, judgment *models.ContentJudgment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.scores[pageID]
	if !ok {
		return nil
	}
	s.Content = content
	s.Overall = overall
	s.Grade = grade
	s.Detail.ContentQuality = judgment
	s.UpdatedAt = time.Now().UTC()
	return nil
}

type fakeIssueRepo struct{ st *fakeState }

func (r *fakeIssueRepo) CreateBatch(_ context.Context, issues []*models.Issue) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.issueBatchCalls++
	r.st.issues = append(r.st.issues, issues...)
	return nil
}

func (r *fakeIssueRepo) GetByJobID(_ context.Context, jobID string) ([]*models.Issue, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Issue
	for _, i := range r.st.issues {
		if i.JobID == jobID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeIssueRepo) GetByPageID(_ context.Context, pageID string) ([]*models.Issue, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Issue
	for _, i := range r.st.issues {
		if i.PageID == pageID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeIssueRepo) DeleteByJobID(_ context.Context, jobID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	kept := r.st.issues[:0]
	for _, i := range r.st.issues {
		if i.JobID != jobID {
			kept = append(kept, i)
		}
	}
	r.st.issues = kept
	return nil
}

type fakeEnrichmentRepo struct{ st *fakeState }

func (r *fakeEnrichmentRepo) CreateBatch(_ context.Context, results []*models.EnrichmentResult) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.enrichmentBatchCalls++
	r.st.enrichments = append(r.st.enrichments, results...)
	return nil
}

func (r *fakeEnrichmentRepo) GetByJobID(_ context.Context, jobID string) ([]*models.EnrichmentResult, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.EnrichmentResult
	for _, e := range r.st.enrichments {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeIntegrationRepo struct{ st *fakeState }

func (r *fakeIntegrationRepo) Create(_ context.Context, integ *models.Integration) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *integ
	r.st.integrations[integ.ID] = &cp
	return nil
}

func (r *fakeIntegrationRepo) GetByID(_ context.Context, id string) (*models.Integration, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	i, ok := r.st.integrations[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (r *fakeIntegrationRepo) GetEnabledByProjectID(_ context.Context, projectID string) ([]*models.Integration, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Integration
	for _, i := range r.st.integrations {
		if i.ProjectID == projectID && i.IsEnabled {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) UpdateTokens(_ context.Context, id, accessEnc, refreshEnc string, expiresAt *time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.tokenUpdates++
	if i, ok := r.st.integrations[id]; ok {
		i.AccessTokenEncrypted = accessEnc
		i.RefreshTokenEncrypted = refreshEnc
		i.TokenExpiresAt = expiresAt
	}
	return nil
}

func (r *fakeIntegrationRepo) UpdateLastSynced(_ context.Context, id string, syncedAt time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.lastSyncedUpdates++
	if i, ok := r.st.integrations[id]; ok {
		i.LastSyncedAt = &syncedAt
	}
	return nil
}

type fakeCacheRepo struct{ st *fakeState }

func (r *fakeCacheRepo) Get(_ context.Context, contentHash string) (*models.CachedJudgment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.cacheGets++
	c, ok := r.st.cache[contentHash]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCacheRepo) Put(_ context.Context, judgment *models.CachedJudgment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.cachePuts++
	cp := *judgment
	r.st.cache[judgment.ContentHash] = &cp
	return nil
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]string
	fetches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]string)}
}

func (s *fakeStore) FetchHTML(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	html, ok := s.objects[key]
	return html, ok, nil
}

// fakeJudge is a scripted ContentJudge.
type fakeJudge struct {
	mu       sync.Mutex
	calls    int
	judgment models.ContentJudgment
	err      error
}

func (j *fakeJudge) JudgeContent(_ context.Context, _ string) (*models.ContentJudgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.err != nil {
		return nil, j.err
	}
	cp := j.judgment
	return &cp, nil
}

func (j *fakeJudge) ModelName() string { return "fake-model" }

func (j *fakeJudge) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}
