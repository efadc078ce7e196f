package orchestrator

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/matchingjob"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Enqueuer creates matching jobs and publishes their first chunk message
type Enqueuer struct {
	jobs     *matchingjob.Repository
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEnqueuer creates a new job enqueuer
func NewEnqueuer(jobs *matchingjob.Repository, producer *kafka.Producer, logger ectologger.Logger) *Enqueuer {
	return &Enqueuer{
		jobs:     jobs,
		producer: producer,
		logger:   logger,
	}
}

// Enqueue persists a queued job and publishes it to the jobs topic. Only one
// active job of a given type per project is allowed.
func (e *Enqueuer) Enqueue(ctx context.Context, tenantID string, req *models.CreateMatchingJobRequest, createdBy *string) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Enqueuer.Enqueue")
	defer span.End()

	active, err := e.jobs.HasActiveJob(ctx, tenantID, req.ProjectID, req.JobType)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, httperror.NewHTTPError(http.StatusConflict, "project already has an active job of this type")
	}

	job := &models.MatchingJob{
		TenantID:  tenantID,
		ProjectID: req.ProjectID,
		JobType:   req.JobType,
		Status:    models.MatchingJobStatusQueued,
		CreatedBy: createdBy,
	}
	job, err = e.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	msg := &kafka.JobMessage{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		ProjectID: job.ProjectID,
		JobType:   job.JobType,
	}
	if err := e.producer.PublishJob(ctx, msg); err != nil {
		// The row stays queued; a stale-claim sweep or manual re-publish can
		// still pick it up, but surface the failure to the caller.
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id": job.ID,
		}).Error("Failed to publish job message")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to enqueue job")
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":     job.ID,
		"project_id": job.ProjectID,
		"job_type":   job.JobType,
	}).Info("Matching job enqueued")
	return job, nil
}

// Resume re-queues a budget-paused job and publishes a fresh job message.
// The message carries no cursor; the next chunk recomputes the remaining
// unmatched items from persisted candidate state.
func (e *Enqueuer) Resume(ctx context.Context, tenantID, jobID string) (*models.MatchingJob, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Enqueuer.Resume")
	defer span.End()

	job, err := e.jobs.Resume(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	msg := &kafka.JobMessage{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		ProjectID: job.ProjectID,
		JobType:   job.JobType,
	}
	if err := e.producer.PublishJob(ctx, msg); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id": job.ID,
		}).Error("Failed to publish resume message")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resume job")
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":     job.ID,
		"project_id": job.ProjectID,
		"processed":  job.ProcessedItems,
		"total":      job.TotalItems,
	}).Info("Matching job resumed")
	return job, nil
}
