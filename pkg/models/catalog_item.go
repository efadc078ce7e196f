package models

import "time"

// CatalogItemRole identifies which side of the match an item belongs to
type CatalogItemRole string

const (
	CatalogItemRoleSource   CatalogItemRole = "source"   // internal inventory
	CatalogItemRoleSupplier CatalogItemRole = "supplier" // supplier catalog
)

// CatalogItem is a single part row imported into a project. Rows are written
// by the import pipeline and treated as immutable here.
type CatalogItem struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	ProjectID      string          `json:"project_id" db:"project_id"`
	Role           CatalogItemRole `json:"role" db:"role"`
	PartNumber     string          `json:"part_number" db:"part_number"`
	PartNumberNorm string          `json:"part_number_norm" db:"part_number_norm"`
	LineCode       *string         `json:"line_code,omitempty" db:"line_code"`
	Description    string          `json:"description" db:"description"`
	Cost           *float64        `json:"cost,omitempty" db:"cost"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// InterchangeRow maps a store-side part number to a vendor-side part number.
// Read-only reference data supplied by the import pipeline.
type InterchangeRow struct {
	ID             string    `json:"id" db:"id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	SourcePartNorm string    `json:"source_part_norm" db:"source_part_norm"`
	VendorPartNorm string    `json:"vendor_part_norm" db:"vendor_part_norm"`
	Vendor         *string   `json:"vendor,omitempty" db:"vendor"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ProjectStage is the project-level cursor over the pipeline
type ProjectStage string

const (
	ProjectStageExact     ProjectStage = "exact"
	ProjectStageFuzzy     ProjectStage = "fuzzy"
	ProjectStageAI        ProjectStage = "ai"
	ProjectStageWebSearch ProjectStage = "web_search"
	ProjectStageReview    ProjectStage = "review"
)

// NextProjectStage returns the stage after the given one. Review is terminal.
func NextProjectStage(s ProjectStage) ProjectStage {
	switch s {
	case ProjectStageExact:
		return ProjectStageFuzzy
	case ProjectStageFuzzy:
		return ProjectStageAI
	case ProjectStageAI:
		return ProjectStageWebSearch
	default:
		return ProjectStageReview
	}
}

// Project holds the per-project matching state fern owns. Project CRUD lives
// in the management service; fern reads the row and advances the stage cursor.
type Project struct {
	ID          string       `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	Name        string       `json:"name" db:"name"`
	MatchStage  ProjectStage `json:"match_stage" db:"match_stage"`
	AIBudgetUSD float64      `json:"ai_budget_usd" db:"ai_budget_usd"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}
