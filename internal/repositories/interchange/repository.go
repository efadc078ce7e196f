// Package interchange reads the vendor interchange reference rows imported
// alongside a project's catalogs.
package interchange

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const columns = "id, tenant_id, project_id, source_part_norm, vendor_part_norm, vendor, confidence, created_at"

// Repository handles interchange row reads
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new interchange repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByProject returns every interchange row of a project
func (r *Repository) ListByProject(ctx context.Context, tenantID, projectID string) ([]models.InterchangeRow, error) {
	ctx, span := tracing.StartSpan(ctx, "interchange.Repository.ListByProject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("interchange_rows")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("project_id", projectID),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	var rows []models.InterchangeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list interchange rows")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list interchange rows")
	}

	return rows, nil
}

// ListBySourceParts returns the interchange rows covering a set of
// normalized source part numbers.
func (r *Repository) ListBySourceParts(ctx context.Context, tenantID, projectID string, sourceParts []string) ([]models.InterchangeRow, error) {
	ctx, span := tracing.StartSpan(ctx, "interchange.Repository.ListBySourceParts")
	defer span.End()

	if len(sourceParts) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("interchange_rows")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("project_id", projectID),
		sb.In("source_part_norm", stringsToAny(sourceParts)...),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	var rows []models.InterchangeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list interchange rows by source parts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list interchange rows")
	}

	return rows, nil
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
