// Package project reads project rows and advances the matching stage cursor.
package project

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const columns = "id, tenant_id, name, match_stage, ai_budget_usd, created_at, updated_at"

// Repository handles project reads and stage updates
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new project repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a project by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Project, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("projects")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("project %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get project")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get project")
	}

	return &project, nil
}

// SetStage moves the project's stage cursor
func (r *Repository) SetStage(ctx context.Context, tenantID, id string, stage models.ProjectStage) error {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.SetStage")
	defer span.End()

	query := `UPDATE projects SET match_stage = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4`
	result, err := r.db.ExecContext(ctx, query, stage, time.Now().UTC(), tenantID, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set project stage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set project stage")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("project %s not found", id))
	}

	return nil
}

// AdvanceStage moves the cursor to the stage after the given one, but only
// if the project is still on it. Concurrent completions are therefore safe.
func (r *Repository) AdvanceStage(ctx context.Context, tenantID, id string, from models.ProjectStage) error {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.AdvanceStage")
	defer span.End()

	next := models.NextProjectStage(from)
	query := `UPDATE projects SET match_stage = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4 AND match_stage = $5`
	if _, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), tenantID, id, from); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to advance project stage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to advance project stage")
	}

	return nil
}
