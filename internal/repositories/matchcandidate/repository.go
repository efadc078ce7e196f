package matchcandidate

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

const columns = "id, tenant_id, project_id, source_item_id, target_type, target_id, method, match_stage, confidence, status, features, created_at, updated_at, resolved_at, resolved_by"

// Repository handles match candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts candidates, silently skipping pairs that already exist.
// Re-running a stage over already-processed items is therefore idempotent.
func (r *Repository) CreateBatch(ctx context.Context, candidates []*models.MatchCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.CreateBatch")
	defer span.End()

	if len(candidates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_candidates")
	sb.Cols("id", "tenant_id", "project_id", "source_item_id", "target_type", "target_id", "method", "match_stage", "confidence", "status", "features", "created_at", "updated_at")

	for _, c := range candidates {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.CreatedAt = now
		c.UpdatedAt = now
		if c.Status == "" {
			c.Status = models.MatchCandidateStatusPending
		}
		sb.Values(c.ID, c.TenantID, c.ProjectID, c.SourceItemID, c.TargetType, c.TargetID, c.Method, c.MatchStage, c.Confidence, c.Status, c.Features, c.CreatedAt, c.UpdatedAt)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (project_id, source_item_id, COALESCE(target_id, ''), method) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create match candidates batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match candidates")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(candidates)}).Debug("Created match candidates batch")
	return nil
}

// Get retrieves a match candidate by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_candidates")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var candidate models.MatchCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match candidate %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match candidate")
	}

	return &candidate, nil
}

// ListFilter narrows a candidate listing
type ListFilter struct {
	Status       string
	Method       string
	SourceItemID string
	Limit        int
	Offset       int
}

// ListByProject retrieves a project's candidates, highest confidence first
func (r *Repository) ListByProject(ctx context.Context, tenantID, projectID string, filter ListFilter) ([]models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.ListByProject")
	defer span.End()

	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_candidates")

	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("project_id", projectID),
	}
	if filter.Status != "" {
		where = append(where, sb.Equal("status", filter.Status))
	}
	if filter.Method != "" {
		where = append(where, sb.Equal("method", filter.Method))
	}
	if filter.SourceItemID != "" {
		where = append(where, sb.Equal("source_item_id", filter.SourceItemID))
	}
	sb.Where(where...)
	sb.OrderBy("confidence DESC", "created_at ASC")
	sb.Limit(filter.Limit)
	sb.Offset(filter.Offset)

	query, args := sb.Build()
	var candidates []models.MatchCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match candidates")
	}

	return candidates, nil
}

// ExistingPairs returns the (source item, target) pairs a project already has
// a candidate for, keyed by source item ID.
func (r *Repository) ExistingPairs(ctx context.Context, tenantID, projectID string) (map[string]map[string]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.ExistingPairs")
	defer span.End()

	query := `
		SELECT source_item_id, target_id
		FROM match_candidates
		WHERE tenant_id = $1 AND project_id = $2 AND target_id IS NOT NULL
	`

	var rows []struct {
		SourceItemID string  `db:"source_item_id"`
		TargetID     *string `db:"target_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, projectID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list existing candidate pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidate pairs")
	}

	pairs := make(map[string]map[string]bool, len(rows))
	for _, row := range rows {
		if row.TargetID == nil {
			continue
		}
		if pairs[row.SourceItemID] == nil {
			pairs[row.SourceItemID] = make(map[string]bool)
		}
		pairs[row.SourceItemID][*row.TargetID] = true
	}
	return pairs, nil
}

// UpdateStatusByID resolves a candidate (confirm or reject)
func (r *Repository) UpdateStatusByID(ctx context.Context, tenantID string, id string, status string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.UpdateStatusByID")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_candidates")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update match candidate status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update match candidate status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match candidate %s not found", id))
	}

	return nil
}

// DeleteByProject removes every candidate of a project. Used when a project
// is re-matched from scratch.
func (r *Repository) DeleteByProject(ctx context.Context, tenantID, projectID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.DeleteByProject")
	defer span.End()

	query := `DELETE FROM match_candidates WHERE tenant_id = $1 AND project_id = $2`
	result, err := r.db.ExecContext(ctx, query, tenantID, projectID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match candidates by project")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match candidates")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// DeleteBySourceItem removes every candidate for one source item. Used by
// the un-match operation so the item re-enters the pipeline.
func (r *Repository) DeleteBySourceItem(ctx context.Context, tenantID, projectID, sourceItemID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.DeleteBySourceItem")
	defer span.End()

	query := `DELETE FROM match_candidates WHERE tenant_id = $1 AND project_id = $2 AND source_item_id = $3`
	result, err := r.db.ExecContext(ctx, query, tenantID, projectID, sourceItemID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match candidates by source item")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match candidates")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// DeleteByPair removes candidates for one (source item, target) pair. Used
// when a negative rule blocks the pair.
func (r *Repository) DeleteByPair(ctx context.Context, tenantID, projectID, sourceItemID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.DeleteByPair")
	defer span.End()

	query := `
		DELETE FROM match_candidates
		WHERE tenant_id = $1 AND project_id = $2 AND source_item_id = $3 AND target_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, tenantID, projectID, sourceItemID, targetID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match candidates by pair")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match candidates")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// CountByProject counts a project's candidates grouped by status
func (r *Repository) CountByProject(ctx context.Context, tenantID, projectID string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.CountByProject")
	defer span.End()

	query := `
		SELECT status, COUNT(*) AS count
		FROM match_candidates
		WHERE tenant_id = $1 AND project_id = $2
		GROUP BY status
	`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, projectID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count match candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match candidates")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
