package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/config"
	"github.com/lsendel/LLMRank-app-sub001/internal/integrations"
	"github.com/lsendel/LLMRank-app-sub001/internal/models"
	"github.com/lsendel/LLMRank-app-sub001/internal/repository"
	"github.com/lsendel/LLMRank-app-sub001/internal/scoring"
	"github.com/lsendel/LLMRank-app-sub001/internal/tasks"
)

func newTestIngest(t *testing.T) (*IngestService, *repository.Repositories, *fakeState) {
	t.Helper()
	repos, st := newFakeRepos()
	engine := scoring.NewEngine(config.DefaultScoreWeights())
	runner := tasks.NewRunner(testLogger(), 4, time.Second)
	// Followup tasks run against inert fakes; the deferred passes have their
	// own tests.
	scorer := NewContentScorer(repos, newFakeStore(), &fakeJudge{}, engine, 2, 100, testLogger())
	enrichment := NewEnrichmentService(repos, nil,
		integrations.NewTokenRefresher(nil, "http://localhost:0"),
		testEncryptor(t), 2, testLogger())
	svc := NewIngestService(repos, engine, runner, scorer, enrichment, testLogger())
	return svc, repos, st
}

func seedJob(t *testing.T, repos *repository.Repositories, status models.JobStatus) *models.CrawlJob {
	t.Helper()
	ctx := context.Background()
	project := &models.Project{
		ID:        ulid.Make().String(),
		Name:      "Example",
		Domain:    "example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := repos.Project.Create(ctx, project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	job := &models.CrawlJob{
		ID:        ulid.Make().String(),
		ProjectID: project.ID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repos.CrawlJob.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func testBatch(final bool, urls ...string) *BatchInput {
	pages := make([]BatchPage, len(urls))
	for i, u := range urls {
		pages[i] = BatchPage{
			URL:        u,
			StatusCode: 200,
			Signals: models.PageSignals{
				Title:           "Title",
				MetaDescription: "Description",
				WordCount:       500,
				H1Count:         1,
			},
		}
	}
	return &BatchInput{
		Final: final,
		Site:  models.SiteContext{Domain: "example.com", HasSitemap: true, SitemapValid: true, HasRobotsTxt: true},
		Pages: pages,
		Stats: BatchStats{PagesFound: len(urls), PagesCrawled: len(urls)},
	}
}

func TestIngestBatchNonFinal(t *testing.T) {
	svc, repos, st := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	updated, err := svc.IngestBatch(context.Background(), job.ID,
		testBatch(false, "https://example.com/", "https://example.com/pricing"))
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	if updated.Status != models.JobStatusCrawling {
		t.Errorf("status = %s, want crawling", updated.Status)
	}
	if updated.StartedAt == nil {
		t.Error("StartedAt not set")
	}
	if updated.CompletedAt != nil {
		t.Error("CompletedAt set on non-final batch")
	}
	if updated.PagesScored != 2 {
		t.Errorf("PagesScored = %d, want 2", updated.PagesScored)
	}
	if len(st.pages) != 2 {
		t.Errorf("persisted pages = %d, want 2", len(st.pages))
	}
	if len(st.scores) != 2 {
		t.Errorf("persisted scores = %d, want 2", len(st.scores))
	}
}

func TestIngestBatchFinal(t *testing.T) {
	svc, repos, _ := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	updated, err := svc.IngestBatch(context.Background(), job.ID, testBatch(true, "https://example.com/"))
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	if updated.Status != models.JobStatusComplete {
		t.Errorf("status = %s, want complete", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("CompletedAt not set on final batch")
	}
}

func TestIngestBatchJobNotFound(t *testing.T) {
	svc, _, _ := newTestIngest(t)

	_, err := svc.IngestBatch(context.Background(), "missing", testBatch(false, "https://example.com/"))
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestIngestBatchTerminalJobRejected(t *testing.T) {
	svc, repos, st := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusCancelled)

	_, err := svc.IngestBatch(context.Background(), job.ID, testBatch(false, "https://example.com/"))
	if !errors.Is(err, ErrJobNotActive) {
		t.Errorf("err = %v, want ErrJobNotActive", err)
	}
	if st.pageBatchCalls != 0 {
		t.Error("terminal job must not receive pages")
	}
}

func TestIngestBatchValidationRejectsBeforeMutation(t *testing.T) {
	svc, repos, st := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	tests := []struct {
		name  string
		input *BatchInput
	}{
		{"nil body", nil},
		{"empty non-final", &BatchInput{Final: false}},
		{"negative stats", &BatchInput{Pages: []BatchPage{{URL: "https://a.com/"}}, Stats: BatchStats{PagesFound: -1}}},
		{"missing url", &BatchInput{Pages: []BatchPage{{URL: ""}}}},
		{"duplicate url", &BatchInput{Pages: []BatchPage{{URL: "https://a.com/"}, {URL: "https://a.com/"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestBatch(context.Background(), job.ID, tt.input)
			if !errors.Is(err, ErrInvalidBatch) {
				t.Errorf("err = %v, want ErrInvalidBatch", err)
			}
		})
	}

	if st.pageBatchCalls != 0 || st.scoreBatchCalls != 0 || st.issueBatchCalls != 0 {
		t.Error("validation failures must not mutate the database")
	}
	reloaded, _ := repos.CrawlJob.GetByID(context.Background(), job.ID)
	if reloaded.Status != models.JobStatusPending {
		t.Errorf("status = %s, want pending untouched", reloaded.Status)
	}
}

func TestIngestBatchScoredCappedAtFound(t *testing.T) {
	svc, repos, _ := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	batch := testBatch(false, "https://example.com/a", "https://example.com/b", "https://example.com/c")
	batch.Stats.PagesFound = 2

	updated, err := svc.IngestBatch(context.Background(), job.ID, batch)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if updated.PagesScored > updated.PagesFound {
		t.Errorf("PagesScored %d exceeds PagesFound %d", updated.PagesScored, updated.PagesFound)
	}
}

func TestIngestBatchSingleBatchInserts(t *testing.T) {
	svc, repos, st := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	// A batch whose pages trigger issues, so the issue insert actually runs.
	batch := testBatch(false, "http://example.com/a", "http://example.com/b", "http://example.com/c")

	if _, err := svc.IngestBatch(context.Background(), job.ID, batch); err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	if st.pageBatchCalls != 1 {
		t.Errorf("page batch inserts = %d, want 1", st.pageBatchCalls)
	}
	if st.scoreBatchCalls != 1 {
		t.Errorf("score batch inserts = %d, want 1", st.scoreBatchCalls)
	}
	if st.issueBatchCalls != 1 {
		t.Errorf("issue batch inserts = %d, want 1", st.issueBatchCalls)
	}
	if len(st.issues) == 0 {
		t.Error("expected issues for non-https pages")
	}
}

func TestIngestBatchSecondBatchAccumulates(t *testing.T) {
	svc, repos, _ := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	first := testBatch(false, "https://example.com/a")
	first.Stats = BatchStats{PagesFound: 5, PagesCrawled: 1}
	if _, err := svc.IngestBatch(context.Background(), job.ID, first); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	second := testBatch(true, "https://example.com/b")
	second.Stats = BatchStats{PagesFound: 5, PagesCrawled: 1}
	updated, err := svc.IngestBatch(context.Background(), job.ID, second)
	if err != nil {
		t.Fatalf("second batch failed: %v", err)
	}

	if updated.Status != models.JobStatusComplete {
		t.Errorf("status = %s, want complete", updated.Status)
	}
	if updated.PagesFound != 5 {
		t.Errorf("PagesFound = %d, want 5", updated.PagesFound)
	}
	if updated.PagesCrawled != 2 {
		t.Errorf("PagesCrawled = %d, want 2", updated.PagesCrawled)
	}
	if updated.PagesScored != 2 {
		t.Errorf("PagesScored = %d, want 2", updated.PagesScored)
	}
}

func TestRescoreJobRebuildsScoresAndIssues(t *testing.T) {
	svc, repos, st := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	if _, err := svc.IngestBatch(context.Background(), job.ID,
		testBatch(true, "http://example.com/a", "http://example.com/b")); err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	issuesBefore := len(st.issues)
	if issuesBefore == 0 {
		t.Fatal("expected issues before rescore")
	}

	n, err := svc.RescoreJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("RescoreJob failed: %v", err)
	}
	if n != 2 {
		t.Errorf("rescored = %d, want 2", n)
	}
	if len(st.issues) != issuesBefore {
		t.Errorf("issues after rescore = %d, want %d (same rules, same inputs)", len(st.issues), issuesBefore)
	}
	if len(st.scores) != 2 {
		t.Errorf("scores after rescore = %d, want 2", len(st.scores))
	}
}

func TestRescoreJobPreservesContentJudgment(t *testing.T) {
	svc, repos, _ := newTestIngest(t)
	job := seedJob(t, repos, models.JobStatusPending)

	if _, err := svc.IngestBatch(context.Background(), job.ID,
		testBatch(true, "https://example.com/a")); err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	scores, _ := repos.PageScore.GetByJobID(context.Background(), job.ID)
	if len(scores) != 1 {
		t.Fatalf("scores = %d, want 1", len(scores))
	}
	judgment := &models.ContentJudgment{Clarity: 80, Depth: 70, Relevance: 90, Overall: 80}
	blended := blendContentScore(scores[0].Content, judgment)
	if err := repos.PageScore.UpdateContentJudgment(context.Background(),
		scores[0].PageID, blended, scores[0].Overall, scores[0].Grade, judgment); err != nil {
		t.Fatalf("UpdateContentJudgment failed: %v", err)
	}

	if _, err := svc.RescoreJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RescoreJob failed: %v", err)
	}

	after, _ := repos.PageScore.GetByPageID(context.Background(), scores[0].PageID)
	if after.Detail.ContentQuality == nil {
		t.Fatal("content judgment dropped by rescore")
	}
	if after.Content != blended {
		t.Errorf("Content = %d, want re-blended %d", after.Content, blended)
	}
}

func TestRescoreJobNotFound(t *testing.T) {
	svc, _, _ := newTestIngest(t)
	_, err := svc.RescoreJob(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}
