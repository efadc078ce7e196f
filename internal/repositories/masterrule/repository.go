// Package masterrule persists learned matching rules.
package masterrule

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

const columns = "id, tenant_id, rule_type, store_part_norm, supplier_part_norm, scope, project_id, confidence, times_applied, created_by, created_at, updated_at"

// Repository handles master rule persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new master rule repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts one rule
func (r *Repository) Create(ctx context.Context, rule *models.MasterRule) (*models.MasterRule, error) {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.Create")
	defer span.End()

	if err := r.CreateBatch(ctx, []*models.MasterRule{rule}); err != nil {
		return nil, err
	}
	return rule, nil
}

// CreateBatch inserts rules, skipping duplicates of the same mapping
func (r *Repository) CreateBatch(ctx context.Context, rules []*models.MasterRule) error {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.CreateBatch")
	defer span.End()

	if len(rules) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("master_rules")
	sb.Cols("id", "tenant_id", "rule_type", "store_part_norm", "supplier_part_norm", "scope", "project_id", "confidence", "times_applied", "created_by", "created_at", "updated_at")

	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		rule.CreatedAt = now
		rule.UpdatedAt = now
		sb.Values(rule.ID, rule.TenantID, rule.RuleType, rule.StorePartNorm, rule.SupplierPartNorm, rule.Scope, rule.ProjectID, rule.Confidence, rule.TimesApplied, rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (tenant_id, rule_type, store_part_norm, supplier_part_norm, COALESCE(project_id, '')) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create master rules")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create master rules")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(rules)}).Debug("Created master rules")
	return nil
}

// Get retrieves a rule by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.MasterRule, error) {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("master_rules")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var rule models.MasterRule
	if err := r.db.GetContext(ctx, &rule, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("master rule %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get master rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get master rule")
	}

	return &rule, nil
}

// List retrieves a tenant's rules with paging
func (r *Repository) List(ctx context.Context, tenantID string, limit, offset int) ([]models.MasterRule, error) {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("master_rules")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var rules []models.MasterRule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list master rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list master rules")
	}

	return rules, nil
}

// ListForProject returns the rules that apply to a project: global rules
// plus the project's own.
func (r *Repository) ListForProject(ctx context.Context, tenantID, projectID string) ([]models.MasterRule, error) {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.ListForProject")
	defer span.End()

	query := `
		SELECT ` + columns + `
		FROM master_rules
		WHERE tenant_id = $1
		AND (scope = $2 OR project_id = $3)
		ORDER BY created_at
	`

	var rules []models.MasterRule
	if err := r.db.SelectContext(ctx, &rules, query, tenantID, models.MasterRuleScopeGlobal, projectID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list master rules for project")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list master rules")
	}

	return rules, nil
}

// IncrementTimesApplied records rule firings
func (r *Repository) IncrementTimesApplied(ctx context.Context, tenantID string, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.IncrementTimesApplied")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("master_rules")
	sb.Set(
		"times_applied = times_applied + 1",
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", idsToAny(ids)...),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to increment rule usage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment rule usage")
	}

	return nil
}

// Delete removes a rule
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "masterrule.Repository.Delete")
	defer span.End()

	query := `DELETE FROM master_rules WHERE tenant_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete master rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete master rule")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("master rule %s not found", id))
	}

	return nil
}

func idsToAny(ids []string) []any {
	result := make([]any, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}
