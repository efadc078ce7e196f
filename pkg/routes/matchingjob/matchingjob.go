// Package matchingjob exposes the job lifecycle API: enqueue, status, list,
// and cancel.
package matchingjob

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/matchingjob"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
	"github.com/Ramsey-B/fern/pkg/routes"
)

// Handler serves matching job routes
type Handler struct {
	jobs     *matchingjob.Repository
	enqueuer *orchestrator.Enqueuer
	logger   ectologger.Logger
}

// NewHandler creates a new matching job handler
func NewHandler(jobs *matchingjob.Repository, enqueuer *orchestrator.Enqueuer, logger ectologger.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Register registers matching job routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/resume", h.Resume)
}

// JobStatusResponse is a job row with derived progress fields
type JobStatusResponse struct {
	models.MatchingJob
	ProgressPct         float64    `json:"progress_pct"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

func statusResponse(job *models.MatchingJob) *JobStatusResponse {
	resp := &JobStatusResponse{MatchingJob: *job}
	if job.TotalItems > 0 {
		resp.ProgressPct = float64(job.ProcessedItems) / float64(job.TotalItems) * 100
	}
	resp.EstimatedCompletion = job.EstimatedCompletion(time.Now().UTC())
	return resp
}

// Create enqueues a new matching job
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req models.CreateMatchingJobRequest
	if err := routes.BindAndValidate(c, &req); err != nil {
		return err
	}

	var createdBy *string
	if userID := appctx.GetUserID(ctx); userID != "" {
		createdBy = &userID
	}

	job, err := h.enqueuer.Enqueue(ctx, tenantID, &req, createdBy)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, statusResponse(job))
}

// List returns a project's jobs, newest first
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "project_id query parameter is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	jobs, err := h.jobs.ListByProject(ctx, tenantID, projectID, limit, offset)
	if err != nil {
		return err
	}

	out := make([]*JobStatusResponse, len(jobs))
	for i := range jobs {
		out[i] = statusResponse(&jobs[i])
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one job with its progress
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	job, err := h.jobs.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, statusResponse(job))
}

// Cancel requests cancellation of a running job. Graceful cancellation lets
// the current chunk finish; immediate stops between items.
func (h *Handler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)
	jobID := c.Param("id")

	req := models.CancelMatchingJobRequest{Type: models.CancellationTypeGraceful}
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Type != models.CancellationTypeGraceful && req.Type != models.CancellationTypeImmediate {
		return httperror.NewHTTPError(http.StatusBadRequest, "type must be graceful or immediate")
	}

	if err := h.jobs.RequestCancellation(ctx, tenantID, jobID, req.Type); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id": jobID,
		"type":   req.Type,
	}).Info("Job cancellation requested")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancellation_requested"})
}

// Resume re-queues a budget-paused job. Raise the project budget first or
// the next chunk pauses it again.
func (h *Handler) Resume(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	job, err := h.enqueuer.Resume(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, statusResponse(job))
}
