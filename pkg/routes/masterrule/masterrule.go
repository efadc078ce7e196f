// Package masterrule exposes CRUD and bulk CSV import for learned rules.
package masterrule

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/masterrule"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/rules"
)

// Handler serves master rule routes
type Handler struct {
	rules  *masterrule.Repository
	logger ectologger.Logger
}

// NewHandler creates a new master rule handler
func NewHandler(rulesRepo *masterrule.Repository, logger ectologger.Logger) *Handler {
	return &Handler{
		rules:  rulesRepo,
		logger: logger,
	}
}

// Register registers master rule routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/import", h.Import)
}

// Create adds one rule by hand
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	var req models.CreateMasterRuleRequest
	if err := routes.BindAndValidate(c, &req); err != nil {
		return err
	}

	rule, err := ruleFromRequest(tenantID, &req, appctx.GetUserID(ctx))
	if err != nil {
		return err
	}
	rule, err = h.rules.Create(ctx, rule)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rule)
}

// List returns a tenant's rules with paging
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	out, err := h.rules.List(ctx, tenantID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one rule
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	rule, err := h.rules.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rule)
}

// Delete removes a rule
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	if err := h.rules.Delete(ctx, tenantID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Import bulk-loads historical review decisions from a CSV body and learns
// rules from them, the same way a live review does. Duplicate mappings are
// skipped on insert.
func (h *Handler) Import(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	decisions, err := rules.ParseDecisionsCSV(c.Request().Body)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(decisions) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "csv contains no decisions")
	}

	createdBy := appctx.GetUserID(ctx)
	var out []*models.MasterRule
	for i := range decisions {
		in := decisions[i]
		in.TenantID = tenantID
		if in.ReviewedBy == "" {
			in.ReviewedBy = createdBy
		}
		learned, err := rules.RulesFromDecision(in)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("csv row %d: %s", i+1, err.Error()))
		}
		for j := range learned {
			out = append(out, &learned[j])
		}
	}

	if err := h.rules.CreateBatch(ctx, out); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"decisions": len(decisions),
		"rules":     len(out),
	}).Info("Imported master rules from review decisions")
	return c.JSON(http.StatusCreated, map[string]int{"imported": len(out)})
}

func ruleFromRequest(tenantID string, req *models.CreateMasterRuleRequest, createdBy string) (*models.MasterRule, error) {
	switch req.RuleType {
	case models.MasterRuleTypePositiveMap, models.MasterRuleTypeNegativeBlock:
	default:
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "rule_type must be positive_map or negative_block")
	}
	if req.Scope == models.MasterRuleScopeProject && req.ProjectID == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "project-scoped rules require project_id")
	}

	store := normalizers.PartNumber(req.StorePartNumber)
	supplier := normalizers.PartNumber(req.SupplierPartNumber)
	if store == "" || supplier == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "part numbers must not normalize to empty")
	}

	confidence := req.Confidence
	if confidence <= 0 {
		confidence = 1.0
	}
	rule := &models.MasterRule{
		TenantID:         tenantID,
		RuleType:         req.RuleType,
		StorePartNorm:    store,
		SupplierPartNorm: supplier,
		Scope:            req.Scope,
		ProjectID:        req.ProjectID,
		Confidence:       confidence,
	}
	if createdBy != "" {
		rule.CreatedBy = &createdBy
	}
	return rule, nil
}
