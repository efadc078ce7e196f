// Package catalogitem reads the imported catalog rows the matching stages
// consume. Catalog writes happen in the import pipeline, not here.
package catalogitem

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const columns = "id, tenant_id, project_id, role, part_number, part_number_norm, line_code, description, cost, created_at"

// Repository handles catalog item reads
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new catalog item repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a catalog item by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.CatalogItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("catalog_items")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var item models.CatalogItem
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("catalog item %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get catalog item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog item")
	}

	return &item, nil
}

// ListUnmatched returns source items that have no candidate from any earlier
// stage. Items a prior stage already matched are excluded, so each stage
// only pays for what the cheaper stages could not resolve. Paging is keyset
// on item ID: afterID names the last item of the previous chunk, so rows
// leaving the result set mid-job never shift the page under the caller the
// way a numeric offset would.
func (r *Repository) ListUnmatched(ctx context.Context, tenantID, projectID string, belowStage int, limit int, afterID string) ([]models.CatalogItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.ListUnmatched")
	defer span.End()

	if limit < 1 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_items ci
		WHERE ci.tenant_id = $1
		AND ci.project_id = $2
		AND ci.role = $3
		AND ci.id > $4
		AND NOT EXISTS (
			SELECT 1 FROM match_candidates mc
			WHERE mc.project_id = ci.project_id
			AND mc.source_item_id = ci.id
			AND mc.match_stage < $5
		)
		ORDER BY ci.id
		LIMIT $6
	`, prefixColumns("ci"))

	var items []models.CatalogItem
	if err := r.db.SelectContext(ctx, &items, query, tenantID, projectID, models.CatalogItemRoleSource, afterID, belowStage, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unmatched catalog items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unmatched catalog items")
	}

	return items, nil
}

// CountUnmatched counts the source items ListUnmatched would return
func (r *Repository) CountUnmatched(ctx context.Context, tenantID, projectID string, belowStage int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.CountUnmatched")
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM catalog_items ci
		WHERE ci.tenant_id = $1
		AND ci.project_id = $2
		AND ci.role = $3
		AND NOT EXISTS (
			SELECT 1 FROM match_candidates mc
			WHERE mc.project_id = ci.project_id
			AND mc.source_item_id = ci.id
			AND mc.match_stage < $4
		)
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, projectID, models.CatalogItemRoleSource, belowStage); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count unmatched catalog items")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count unmatched catalog items")
	}

	return count, nil
}

// ListSuppliers returns every supplier item of a project
func (r *Repository) ListSuppliers(ctx context.Context, tenantID, projectID string) ([]models.CatalogItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.ListSuppliers")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("catalog_items")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("project_id", projectID),
		sb.Equal("role", models.CatalogItemRoleSupplier),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	var items []models.CatalogItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list supplier catalog items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list supplier catalog items")
	}

	return items, nil
}

// ListFuzzyCandidates returns supplier items whose normalized part number is
// within trigram distance of the given one. Relies on the pg_trgm GIN index
// so the full catalog is never scanned.
func (r *Repository) ListFuzzyCandidates(ctx context.Context, tenantID, projectID, partNorm string, threshold float64, limit int) ([]models.CatalogItem, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.ListFuzzyCandidates")
	defer span.End()

	if limit < 1 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_items ci
		WHERE ci.tenant_id = $1
		AND ci.project_id = $2
		AND ci.role = $3
		AND similarity(ci.part_number_norm, $4) >= $5
		ORDER BY similarity(ci.part_number_norm, $4) DESC, ci.id
		LIMIT $6
	`, prefixColumns("ci"))

	var items []models.CatalogItem
	if err := r.db.SelectContext(ctx, &items, query, tenantID, projectID, models.CatalogItemRoleSupplier, partNorm, threshold, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list fuzzy candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list fuzzy candidates")
	}

	return items, nil
}

// CountSources counts a project's source items
func (r *Repository) CountSources(ctx context.Context, tenantID, projectID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogitem.Repository.CountSources")
	defer span.End()

	query := `SELECT COUNT(*) FROM catalog_items WHERE tenant_id = $1 AND project_id = $2 AND role = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, projectID, models.CatalogItemRoleSource); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count source catalog items")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count source catalog items")
	}

	return count, nil
}

func prefixColumns(alias string) string {
	return alias + ".id, " + alias + ".tenant_id, " + alias + ".project_id, " + alias + ".role, " +
		alias + ".part_number, " + alias + ".part_number_norm, " + alias + ".line_code, " +
		alias + ".description, " + alias + ".cost, " + alias + ".created_at"
}
