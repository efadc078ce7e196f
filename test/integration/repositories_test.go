package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/catalogitem"
	"github.com/Ramsey-B/fern/internal/repositories/matchcandidate"
	"github.com/Ramsey-B/fern/internal/repositories/matchingjob"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// setupDB connects to the test database named by TEST_DATABASE_DSN. The
// schema must already be migrated.
func setupDB(t *testing.T) database.DB {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	sqlxDB, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlxDB.Close() })

	return database.NewDatabaseInstance(sqlxDB, testLogger())
}

func testLogger() ectologger.Logger {
	zapLogger := zap.NewNop()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func insertCatalogItem(t *testing.T, db database.DB, item *models.CatalogItem) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO catalog_items (id, tenant_id, project_id, role, part_number, part_number_norm, line_code, description, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.TenantID, item.ProjectID, item.Role, item.PartNumber, item.PartNumberNorm, item.LineCode, item.Description, item.Cost)
	require.NoError(t, err)
}

func TestMatchingJobLifecycle(t *testing.T) {
	db := setupDB(t)
	repo := matchingjob.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]
	projectID := uuid.New().String()

	job, err := repo.Create(ctx, &models.MatchingJob{
		TenantID:  tenantID,
		ProjectID: projectID,
		JobType:   models.MatchingJobTypeExact,
		Status:    models.MatchingJobStatusQueued,
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	// First worker claims the queued job
	claimed, err := repo.Claim(ctx, job.ID, "worker-a", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, models.MatchingJobStatusProcessing, claimed.Status)

	// A second worker cannot steal a live claim
	stolen, err := repo.Claim(ctx, job.ID, "worker-b", 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, stolen)

	// The holder re-claims its own job (message redelivery)
	reclaimed, err := repo.Claim(ctx, job.ID, "worker-a", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)

	require.NoError(t, repo.SetTotalItems(ctx, job.ID, 100))
	require.NoError(t, repo.UpdateProgress(ctx, job.ID, "worker-a", 40, 12, 0.80))

	fresh, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, fresh.ProcessedItems)
	assert.Equal(t, 12, fresh.MatchesFound)
	assert.InDelta(t, 0.80, fresh.EstimatedCostUSD, 0.0001)

	// A budget pause parks the job with progress intact
	require.NoError(t, repo.MarkPaused(ctx, job.ID, "worker-a"))
	paused, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusPaused, paused.Status)
	assert.Equal(t, 40, paused.ProcessedItems)
	assert.Nil(t, paused.WorkerID)

	// Paused jobs are not claimable until resumed
	held, err := repo.Claim(ctx, job.ID, "worker-b", 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, held)

	requeued, err := repo.Resume(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusQueued, requeued.Status)

	// A different worker picks the resumed job up with progress intact
	resumed, err := repo.Claim(ctx, job.ID, "worker-b", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, 40, resumed.ProcessedItems)

	require.NoError(t, repo.RequestCancellation(ctx, tenantID, job.ID, models.CancellationTypeGraceful))
	cancelledCheck, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelledCheck.CancellationRequested)

	require.NoError(t, repo.MarkCancelled(ctx, job.ID, "worker-b"))
	done, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusCancelled, done.Status)
	assert.True(t, done.IsTerminal())
	assert.NotNil(t, done.CompletedAt)
}

func TestBudgetPauseAndResumeKeepsRemainingWork(t *testing.T) {
	db := setupDB(t)
	repo := matchingjob.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]
	projectID := uuid.New().String()

	job, err := repo.Create(ctx, &models.MatchingJob{
		TenantID:  tenantID,
		ProjectID: projectID,
		JobType:   models.MatchingJobTypeAI,
		Status:    models.MatchingJobStatusQueued,
	})
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, job.ID, "worker-a", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, repo.SetTotalItems(ctx, job.ID, 100))

	// The ceiling is hit after 60 of 100 items; the chunk records what it
	// finished and parks the job
	require.NoError(t, repo.UpdateProgress(ctx, job.ID, "worker-a", 60, 18, 20.0))
	require.NoError(t, repo.MarkPaused(ctx, job.ID, "worker-a"))

	paused, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusPaused, paused.Status)
	assert.False(t, paused.IsTerminal())
	assert.Equal(t, 60, paused.ProcessedItems)

	// A paused job still counts as active, so a duplicate enqueue is refused
	active, err := repo.HasActiveJob(ctx, tenantID, projectID, models.MatchingJobTypeAI)
	require.NoError(t, err)
	assert.True(t, active)

	// Resume after the budget is raised; the remaining 40 items get processed
	requeued, err := repo.Resume(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusQueued, requeued.Status)
	assert.Equal(t, 40, requeued.TotalItems-requeued.ProcessedItems)

	resumed, err := repo.Claim(ctx, job.ID, "worker-b", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	require.NoError(t, repo.UpdateProgress(ctx, job.ID, "worker-b", 40, 10, 12.0))
	require.NoError(t, repo.MarkCompleted(ctx, job.ID, "worker-b"))

	done, err := repo.Get(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingJobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.ProcessedItems)

	// Resuming anything but a paused job is refused
	_, err = repo.Resume(ctx, tenantID, job.ID)
	require.Error(t, err)
}

func TestMatchingJobStaleClaim(t *testing.T) {
	db := setupDB(t)
	repo := matchingjob.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]

	job, err := repo.Create(ctx, &models.MatchingJob{
		TenantID:  tenantID,
		ProjectID: uuid.New().String(),
		JobType:   models.MatchingJobTypeFuzzy,
		Status:    models.MatchingJobStatusQueued,
	})
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, job.ID, "worker-dead", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// With a zero stale window every lock is already stale, simulating a
	// worker that died mid-chunk
	recovered, err := repo.Claim(ctx, job.ID, "worker-live", 0)
	require.NoError(t, err)
	require.NotNil(t, recovered)
	assert.Equal(t, "worker-live", *recovered.WorkerID)
}

func TestMatchCandidateDedupeAndReview(t *testing.T) {
	db := setupDB(t)
	repo := matchcandidate.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]
	projectID := uuid.New().String()
	sourceID := uuid.New().String()
	targetID := uuid.New().String()

	candidate := func() *models.MatchCandidate {
		return &models.MatchCandidate{
			TenantID:     tenantID,
			ProjectID:    projectID,
			SourceItemID: sourceID,
			TargetType:   models.MatchTargetSupplier,
			TargetID:     &targetID,
			Method:       models.MatchMethodExactNormalized,
			MatchStage:   models.MatchStageExact,
			Confidence:   0.98,
			Status:       models.MatchCandidateStatusPending,
		}
	}

	require.NoError(t, repo.CreateBatch(ctx, []*models.MatchCandidate{candidate()}))
	// Replaying the same chunk must not duplicate the pair
	require.NoError(t, repo.CreateBatch(ctx, []*models.MatchCandidate{candidate()}))

	listed, err := repo.ListByProject(ctx, tenantID, projectID, matchcandidate.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	reviewer := "reviewer-1"
	require.NoError(t, repo.UpdateStatusByID(ctx, tenantID, listed[0].ID, models.MatchCandidateStatusConfirmed, &reviewer))

	confirmed, err := repo.Get(ctx, tenantID, listed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCandidateStatusConfirmed, confirmed.Status)
	assert.Equal(t, reviewer, *confirmed.ResolvedBy)
	assert.NotNil(t, confirmed.ResolvedAt)

	counts, err := repo.CountByProject(ctx, tenantID, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.MatchCandidateStatusConfirmed])
}

func TestListUnmatchedExcludesSettledItems(t *testing.T) {
	db := setupDB(t)
	items := catalogitem.NewRepository(db, testLogger())
	candidates := matchcandidate.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]
	projectID := uuid.New().String()

	matched := &models.CatalogItem{
		TenantID: tenantID, ProjectID: projectID, Role: models.CatalogItemRoleSource,
		PartNumber: "BP-1234", PartNumberNorm: "BP1234",
	}
	unmatched := &models.CatalogItem{
		TenantID: tenantID, ProjectID: projectID, Role: models.CatalogItemRoleSource,
		PartNumber: "WH-9", PartNumberNorm: "WH9",
	}
	supplier := &models.CatalogItem{
		TenantID: tenantID, ProjectID: projectID, Role: models.CatalogItemRoleSupplier,
		PartNumber: "BP1234", PartNumberNorm: "BP1234",
	}
	insertCatalogItem(t, db, matched)
	insertCatalogItem(t, db, unmatched)
	insertCatalogItem(t, db, supplier)

	require.NoError(t, candidates.CreateBatch(ctx, []*models.MatchCandidate{{
		TenantID:     tenantID,
		ProjectID:    projectID,
		SourceItemID: matched.ID,
		TargetType:   models.MatchTargetSupplier,
		TargetID:     &supplier.ID,
		Method:       models.MatchMethodExactNormalized,
		MatchStage:   models.MatchStageExact,
		Confidence:   1.0,
		Status:       models.MatchCandidateStatusPending,
	}}))

	// The fuzzy stage must skip the item the exact stage settled
	forFuzzy, err := items.ListUnmatched(ctx, tenantID, projectID, models.MatchStageFuzzy, 100, "")
	require.NoError(t, err)
	require.Len(t, forFuzzy, 1)
	assert.Equal(t, unmatched.ID, forFuzzy[0].ID)

	// A fresh exact run sees both: stage 1 candidates are not below stage 1
	forExact, err := items.ListUnmatched(ctx, tenantID, projectID, models.MatchStageExact, 100, "")
	require.NoError(t, err)
	assert.Len(t, forExact, 2)

	count, err := items.CountUnmatched(ctx, tenantID, projectID, models.MatchStageFuzzy)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListUnmatchedKeysetPagingDoesNotSkip(t *testing.T) {
	db := setupDB(t)
	items := catalogitem.NewRepository(db, testLogger())
	candidates := matchcandidate.NewRepository(db, testLogger())
	ctx := context.Background()
	tenantID := "it-tenant-" + uuid.New().String()[:8]
	projectID := uuid.New().String()
	run := uuid.New().String()[:8]

	sources := make([]*models.CatalogItem, 4)
	for i := range sources {
		sources[i] = &models.CatalogItem{
			ID:       fmt.Sprintf("it-%s-%d", run, i),
			TenantID: tenantID, ProjectID: projectID, Role: models.CatalogItemRoleSource,
			PartNumber: fmt.Sprintf("PN-%d", i), PartNumberNorm: fmt.Sprintf("PN%d", i),
		}
		insertCatalogItem(t, db, sources[i])
	}

	first, err := items.ListUnmatched(ctx, tenantID, projectID, models.MatchStageFuzzy, 2, "")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, sources[0].ID, first[0].ID)

	// One item of the first chunk gets settled; the next page must pick up
	// right after the last item seen, not shift past never-seen rows the way
	// a numeric offset over the shrinking result set would
	target := uuid.New().String()
	require.NoError(t, candidates.CreateBatch(ctx, []*models.MatchCandidate{{
		TenantID:     tenantID,
		ProjectID:    projectID,
		SourceItemID: sources[0].ID,
		TargetType:   models.MatchTargetSupplier,
		TargetID:     &target,
		Method:       models.MatchMethodExactNormalized,
		MatchStage:   models.MatchStageExact,
		Confidence:   0.98,
		Status:       models.MatchCandidateStatusPending,
	}}))

	second, err := items.ListUnmatched(ctx, tenantID, projectID, models.MatchStageFuzzy, 2, first[1].ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, sources[2].ID, second[0].ID)
	assert.Equal(t, sources[3].ID, second[1].ID)
}
