// Package matchingjob persists job rows and implements the claim protocol
// that keeps one worker on a job at a time.
package matchingjob

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const columns = "id, tenant_id, project_id, job_type, status, processed_items, total_items, matches_found, estimated_cost_usd, cancellation_requested, cancellation_type, worker_id, error_message, locked_at, created_by, created_at, updated_at, completed_at"

// Repository handles matching job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new matching job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new queued job
func (r *Repository) Create(ctx context.Context, job *models.MatchingJob) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.Create")
	defer span.End()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.MatchingJobStatusQueued
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("matching_jobs")
	sb.Cols("id", "tenant_id", "project_id", "job_type", "status", "processed_items", "total_items", "matches_found", "estimated_cost_usd", "cancellation_requested", "created_by", "created_at", "updated_at")
	sb.Values(job.ID, job.TenantID, job.ProjectID, job.JobType, job.Status, job.ProcessedItems, job.TotalItems, job.MatchesFound, job.EstimatedCostUSD, job.CancellationRequested, job.CreatedBy, job.CreatedAt, job.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": job.ID}).Error("Failed to create matching job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create matching job")
	}

	return job, nil
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("matching_jobs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var job models.MatchingJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("matching job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get matching job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get matching job")
	}

	return &job, nil
}

// ListByProject retrieves a project's jobs, newest first
func (r *Repository) ListByProject(ctx context.Context, tenantID, projectID string, limit, offset int) ([]models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.ListByProject")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("matching_jobs")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("project_id", projectID),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var jobs []models.MatchingJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list matching jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list matching jobs")
	}

	return jobs, nil
}

// HasActiveJob reports whether a project already has a queued, processing,
// or paused job of the given type, used to reject duplicate submissions.
func (r *Repository) HasActiveJob(ctx context.Context, tenantID, projectID string, jobType models.MatchingJobType) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.HasActiveJob")
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM matching_jobs
		WHERE tenant_id = $1 AND project_id = $2 AND job_type = $3
		AND status IN ($4, $5, $6)
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, projectID, jobType,
		models.MatchingJobStatusQueued, models.MatchingJobStatusProcessing, models.MatchingJobStatusPaused); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check for active job")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check for active job")
	}

	return count > 0, nil
}

// Claim atomically takes ownership of a job for one worker. A job is
// claimable when queued, or when processing but its lock is older than
// staleAfter (the previous worker died mid-chunk). Returns the claimed job,
// or nil when another worker holds it or the job is terminal.
func (r *Repository) Claim(ctx context.Context, jobID, workerID string, staleAfter time.Duration) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.Claim")
	defer span.End()

	now := time.Now().UTC()
	staleBefore := now.Add(-staleAfter)

	query := `
		UPDATE matching_jobs
		SET status = $1, worker_id = $2, locked_at = $3, updated_at = $3
		WHERE id = $4
		AND (
			status = $5
			OR (status = $1 AND (worker_id = $2 OR locked_at IS NULL OR locked_at < $6))
		)
		RETURNING ` + columns

	var job models.MatchingJob
	err := r.db.GetContext(ctx, &job, query,
		models.MatchingJobStatusProcessing, workerID, now,
		jobID, models.MatchingJobStatusQueued, staleBefore,
	)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to claim matching job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim matching job")
	}

	return &job, nil
}

// UpdateProgress records chunk results and refreshes the worker's lock
func (r *Repository) UpdateProgress(ctx context.Context, jobID, workerID string, processedItems, matchesFound int, estimatedCostUSD float64) error {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.UpdateProgress")
	defer span.End()

	now := time.Now().UTC()
	query := `
		UPDATE matching_jobs
		SET processed_items = processed_items + $1,
			matches_found = matches_found + $2,
			estimated_cost_usd = estimated_cost_usd + $3,
			locked_at = $4,
			updated_at = $4
		WHERE id = $5 AND worker_id = $6
	`

	result, err := r.db.ExecContext(ctx, query, processedItems, matchesFound, estimatedCostUSD, now, jobID, workerID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to update job progress")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update job progress")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, "job is no longer owned by this worker")
	}

	return nil
}

// SetTotalItems records the job's workload size on first claim
func (r *Repository) SetTotalItems(ctx context.Context, jobID string, totalItems int) error {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.SetTotalItems")
	defer span.End()

	query := `UPDATE matching_jobs SET total_items = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, totalItems, time.Now().UTC(), jobID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set job total items")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set job total items")
	}

	return nil
}

// RequestCancellation flags a queued, running, or paused job for
// cancellation. A paused job's flag takes effect when it is resumed.
func (r *Repository) RequestCancellation(ctx context.Context, tenantID, jobID, cancellationType string) error {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.RequestCancellation")
	defer span.End()

	query := `
		UPDATE matching_jobs
		SET cancellation_requested = TRUE, cancellation_type = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
		AND status IN ($5, $6, $7)
	`

	result, err := r.db.ExecContext(ctx, query, cancellationType, time.Now().UTC(), tenantID, jobID,
		models.MatchingJobStatusQueued, models.MatchingJobStatusProcessing, models.MatchingJobStatusPaused)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to request job cancellation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to request job cancellation")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, "job is not running, queued, or paused")
	}

	return nil
}

// MarkCompleted moves a job to its completed state
func (r *Repository) MarkCompleted(ctx context.Context, jobID, workerID string) error {
	return r.finish(ctx, jobID, workerID, models.MatchingJobStatusCompleted, nil)
}

// MarkCancelled moves a job to its cancelled state
func (r *Repository) MarkCancelled(ctx context.Context, jobID, workerID string) error {
	return r.finish(ctx, jobID, workerID, models.MatchingJobStatusCancelled, nil)
}

// MarkFailed moves a job to its failed state, preserving progress
func (r *Repository) MarkFailed(ctx context.Context, jobID, workerID string, errMessage string) error {
	return r.finish(ctx, jobID, workerID, models.MatchingJobStatusFailed, &errMessage)
}

func (r *Repository) finish(ctx context.Context, jobID, workerID, status string, errMessage *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.finish")
	defer span.End()

	now := time.Now().UTC()
	query := `
		UPDATE matching_jobs
		SET status = $1, error_message = $2, completed_at = $3, updated_at = $3, worker_id = NULL, locked_at = NULL
		WHERE id = $4 AND worker_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, status, errMessage, now, jobID, workerID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id": jobID,
			"status": status,
		}).Error("Failed to finish matching job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finish matching job")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, "job is no longer owned by this worker")
	}

	return nil
}

// MarkPaused parks a claimed job with its progress intact, used when a
// budget ceiling pauses the job. Paused jobs are not claimable; Resume
// returns them to the queue.
func (r *Repository) MarkPaused(ctx context.Context, jobID, workerID string) error {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.MarkPaused")
	defer span.End()

	query := `
		UPDATE matching_jobs
		SET status = $1, worker_id = NULL, locked_at = NULL, updated_at = $2
		WHERE id = $3 AND worker_id = $4
	`

	result, err := r.db.ExecContext(ctx, query, models.MatchingJobStatusPaused, time.Now().UTC(), jobID, workerID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to pause matching job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to pause matching job")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, "job is no longer owned by this worker")
	}

	return nil
}

// Resume moves a paused job back to the queue and returns it so the caller
// can publish a fresh job message.
func (r *Repository) Resume(ctx context.Context, tenantID, jobID string) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingjob.Repository.Resume")
	defer span.End()

	query := `
		UPDATE matching_jobs
		SET status = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4 AND status = $5
		RETURNING ` + columns

	var job models.MatchingJob
	err := r.db.GetContext(ctx, &job, query,
		models.MatchingJobStatusQueued, time.Now().UTC(), tenantID, jobID, models.MatchingJobStatusPaused,
	)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusConflict, "job is not paused")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to resume matching job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resume matching job")
	}

	return &job, nil
}
