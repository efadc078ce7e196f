package models

import "time"

// MatchingJobStatus constants
const (
	MatchingJobStatusQueued     = "queued"
	MatchingJobStatusProcessing = "processing"
	MatchingJobStatusPaused     = "paused"
	MatchingJobStatusCompleted  = "completed"
	MatchingJobStatusFailed     = "failed"
	MatchingJobStatusCancelled  = "cancelled"
)

// MatchingJobType identifies which stage a job drives
type MatchingJobType string

const (
	MatchingJobTypeExact        MatchingJobType = "exact"
	MatchingJobTypeFuzzy        MatchingJobType = "fuzzy"
	MatchingJobTypeAI           MatchingJobType = "ai"
	MatchingJobTypeWebSearch    MatchingJobType = "web_search"
	MatchingJobTypeSupersession MatchingJobType = "supersession"
)

// CancellationType constants
const (
	CancellationTypeGraceful  = "graceful"
	CancellationTypeImmediate = "immediate"
)

// MatchingJob drives one pipeline stage to completion for one project. A
// job's lifetime spans many chunk executions; progress is derived from
// persisted candidate state, never from an in-memory offset.
type MatchingJob struct {
	ID                    string          `json:"id" db:"id"`
	TenantID              string          `json:"tenant_id" db:"tenant_id"`
	ProjectID             string          `json:"project_id" db:"project_id"`
	JobType               MatchingJobType `json:"job_type" db:"job_type"`
	Status                string          `json:"status" db:"status"`
	ProcessedItems        int             `json:"processed_items" db:"processed_items"`
	TotalItems            int             `json:"total_items" db:"total_items"`
	MatchesFound          int             `json:"matches_found" db:"matches_found"`
	EstimatedCostUSD      float64         `json:"estimated_cost_usd" db:"estimated_cost_usd"`
	CancellationRequested bool            `json:"cancellation_requested" db:"cancellation_requested"`
	CancellationType      *string         `json:"cancellation_type,omitempty" db:"cancellation_type"`
	WorkerID              *string         `json:"worker_id,omitempty" db:"worker_id"`
	ErrorMessage          *string         `json:"error_message,omitempty" db:"error_message"`
	LockedAt              *time.Time      `json:"locked_at,omitempty" db:"locked_at"`
	CreatedBy             *string         `json:"created_by,omitempty" db:"created_by"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// EstimatedCompletion projects a finish time from current throughput. Returns
// nil until at least one item has been processed.
func (j *MatchingJob) EstimatedCompletion(now time.Time) *time.Time {
	if j.ProcessedItems <= 0 || j.TotalItems <= j.ProcessedItems {
		return nil
	}
	elapsed := now.Sub(j.CreatedAt)
	if elapsed <= 0 {
		return nil
	}
	perItem := elapsed / time.Duration(j.ProcessedItems)
	eta := now.Add(perItem * time.Duration(j.TotalItems-j.ProcessedItems))
	return &eta
}

// IsTerminal reports whether the job is in a terminal state
func (j *MatchingJob) IsTerminal() bool {
	switch j.Status {
	case MatchingJobStatusCompleted, MatchingJobStatusFailed, MatchingJobStatusCancelled:
		return true
	}
	return false
}

// CreateMatchingJobRequest is the request to create and enqueue a job
type CreateMatchingJobRequest struct {
	ProjectID string          `json:"project_id" validate:"required,uuid"`
	JobType   MatchingJobType `json:"job_type" validate:"required,oneof=exact fuzzy ai web_search supersession"`
}

// CancelMatchingJobRequest is the request to cancel a running job
type CancelMatchingJobRequest struct {
	Type string `json:"type" validate:"required,oneof=graceful immediate"`
}
