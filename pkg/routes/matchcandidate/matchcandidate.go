// Package matchcandidate exposes the review API: listing candidates, applying
// review decisions, and unmatching source items. Review decisions also feed
// the master rule learning loop.
package matchcandidate

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/catalogitem"
	"github.com/Ramsey-B/fern/internal/repositories/masterrule"
	"github.com/Ramsey-B/fern/internal/repositories/matchcandidate"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/rules"
)

// Handler serves match candidate routes
type Handler struct {
	candidates *matchcandidate.Repository
	items      *catalogitem.Repository
	rules      *masterrule.Repository
	producer   *kafka.Producer
	locker     *redis.Locker
	logger     ectologger.Logger
}

// NewHandler creates a new match candidate handler
func NewHandler(
	candidates *matchcandidate.Repository,
	items *catalogitem.Repository,
	rulesRepo *masterrule.Repository,
	producer *kafka.Producer,
	locker *redis.Locker,
	logger ectologger.Logger,
) *Handler {
	return &Handler{
		candidates: candidates,
		items:      items,
		rules:      rulesRepo,
		producer:   producer,
		locker:     locker,
		logger:     logger,
	}
}

// Register registers match candidate routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/counts", h.Counts)
	g.GET("/:id", h.Get)
	g.POST("/:id/review", h.Review)
	g.DELETE("", h.UnmatchProject)
	g.DELETE("/source/:sourceItemId", h.Unmatch)
}

// List returns a project's candidates with optional status/method filters
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "project_id query parameter is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	filter := matchcandidate.ListFilter{
		Status:       c.QueryParam("status"),
		Method:       c.QueryParam("method"),
		SourceItemID: c.QueryParam("source_item_id"),
		Limit:        limit,
		Offset:       offset,
	}

	candidates, err := h.candidates.ListByProject(ctx, tenantID, projectID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidates)
}

// Counts returns a project's candidate counts grouped by status
func (h *Handler) Counts(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "project_id query parameter is required")
	}

	counts, err := h.candidates.CountByProject(ctx, tenantID, projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

// Get returns one candidate
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	candidate, err := h.candidates.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// Review applies a human decision to a candidate and learns master rules
// from it. Approvals confirm, rejections reject, corrections reject the
// original pairing and record the corrected mapping as rules.
func (h *Handler) Review(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req models.ReviewDecision
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.CandidateID = c.Param("id")

	candidate, err := h.candidates.Get(ctx, tenantID, req.CandidateID)
	if err != nil {
		return err
	}
	if candidate.Status != models.MatchCandidateStatusPending {
		return httperror.NewHTTPError(http.StatusConflict, "candidate is already resolved")
	}

	var status, eventType string
	switch req.Decision {
	case models.ReviewDecisionApprove:
		status = models.MatchCandidateStatusConfirmed
		eventType = kafka.MatchEventConfirmed
	case models.ReviewDecisionReject, models.ReviewDecisionCorrect:
		status = models.MatchCandidateStatusRejected
		eventType = kafka.MatchEventRejected
	default:
		return httperror.NewHTTPError(http.StatusBadRequest, "decision must be approve, reject, or correct")
	}

	var resolvedBy *string
	if req.ReviewedBy != "" {
		resolvedBy = &req.ReviewedBy
	}
	if err := h.candidates.UpdateStatusByID(ctx, tenantID, candidate.ID, status, resolvedBy); err != nil {
		return err
	}

	if err := h.learnFromDecision(c, candidate, &req); err != nil {
		// The decision is already recorded; learning failure only costs
		// future automation
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to learn rules from review decision")
	}

	candidate.Status = status
	if err := h.producer.PublishMatchEvent(ctx, kafka.EventForCandidate(eventType, candidate)); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to publish review event")
	}

	return c.JSON(http.StatusOK, candidate)
}

// learnFromDecision converts a review into master rules. Interchange-only
// candidates have no supplier item to learn from.
func (h *Handler) learnFromDecision(c echo.Context, candidate *models.MatchCandidate, req *models.ReviewDecision) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	if candidate.TargetID == nil {
		return nil
	}

	source, err := h.items.Get(ctx, tenantID, candidate.SourceItemID)
	if err != nil {
		return err
	}
	target, err := h.items.Get(ctx, tenantID, *candidate.TargetID)
	if err != nil {
		return err
	}

	in := rules.LearnInput{
		TenantID:     tenantID,
		ProjectID:    candidate.ProjectID,
		Decision:     req.Decision,
		StorePart:    source.PartNumber,
		SupplierPart: target.PartNumber,
		ReviewedBy:   req.ReviewedBy,
		Confidence:   candidate.Confidence,
	}
	if req.Decision == models.ReviewDecisionCorrect {
		if req.CorrectedTargetID == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "corrected_target_id is required for correction")
		}
		corrected, err := h.items.Get(ctx, tenantID, req.CorrectedTargetID)
		if err != nil {
			return err
		}
		in.CorrectedPart = corrected.PartNumber
	}

	learned, err := rules.RulesFromDecision(in)
	if err != nil {
		return err
	}

	out := make([]*models.MasterRule, len(learned))
	for i := range learned {
		out[i] = &learned[i]
	}
	return h.rules.CreateBatch(ctx, out)
}

// UnmatchProject clears every candidate of a project so matching can start
// over. It takes the same lock the exact stage takes when it re-matches, so
// the clear never races a running job's prepare step.
func (h *Handler) UnmatchProject(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "project_id query parameter is required")
	}

	lock, err := h.locker.TryAcquire(ctx, "rematch:"+projectID, time.Minute, 5*time.Second)
	if err != nil {
		return httperror.NewHTTPError(http.StatusConflict, "a re-match is already in progress for this project")
	}
	defer func() { _ = lock.Release(ctx) }()

	deleted, err := h.candidates.DeleteByProject(ctx, tenantID, projectID)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"project_id": projectID,
		"deleted":    deleted,
	}).Info("Cleared project match candidates")
	return c.JSON(http.StatusOK, map[string]any{"deleted": deleted})
}

// Unmatch deletes every candidate of a source item so later stages can
// reconsider it
func (h *Handler) Unmatch(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "project_id query parameter is required")
	}
	sourceItemID := c.Param("sourceItemId")

	deleted, err := h.candidates.DeleteBySourceItem(ctx, tenantID, projectID, sourceItemID)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"source_item_id": sourceItemID,
		"deleted":        deleted,
	}).Info("Unmatched source item")
	return c.JSON(http.StatusOK, map[string]any{"deleted": deleted})
}
