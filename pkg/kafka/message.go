package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	JobMessage *JobMessage
}

// JobMessage is one unit of matching work on the jobs topic. A job is
// processed one chunk per message: workers claim the job row, process the
// chunk of unmatched items after Cursor, and re-publish the message with an
// advanced cursor while work remains. The unmatched set itself is always
// recomputed from candidate state, so a redelivered message reprocesses
// exactly the items its chunk left unsettled.
type JobMessage struct {
	JobID     string                 `json:"job_id"`
	TenantID  string                 `json:"tenant_id"`
	ProjectID string                 `json:"project_id"`
	JobType   models.MatchingJobType `json:"job_type"`
	Cursor    string                 `json:"cursor"`
	Attempt   int                    `json:"attempt"`
	Timestamp time.Time              `json:"timestamp"`
}

// Validate checks the fields a worker cannot proceed without
func (j *JobMessage) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job message missing job_id")
	}
	if j.TenantID == "" {
		return fmt.Errorf("job message missing tenant_id")
	}
	if j.ProjectID == "" {
		return fmt.Errorf("job message missing project_id")
	}
	if j.JobType == "" {
		return fmt.Errorf("job message missing job_type")
	}
	return nil
}

// ParseJobMessage parses the message value as a job message
func (m *IncomingMessage) ParseJobMessage() error {
	var msg JobMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	m.JobMessage = &msg
	return nil
}

// GetTenantID returns the tenant ID from the parsed message or headers
func (m *IncomingMessage) GetTenantID() string {
	if m.JobMessage != nil && m.JobMessage.TenantID != "" {
		return m.JobMessage.TenantID
	}
	return m.Headers["tenant_id"]
}

// MatchEvent is published on the events topic whenever a candidate changes.
// Downstream consumers (exports, notifications) key on the source item.
type MatchEvent struct {
	EventType    string    `json:"event_type"` // created, confirmed, rejected, deleted
	TenantID     string    `json:"tenant_id"`
	ProjectID    string    `json:"project_id"`
	CandidateID  string    `json:"candidate_id"`
	SourceItemID string    `json:"source_item_id"`
	TargetID     string    `json:"target_id,omitempty"`
	Method       string    `json:"method"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

// Match event types
const (
	MatchEventCreated   = "match.created"
	MatchEventConfirmed = "match.confirmed"
	MatchEventRejected  = "match.rejected"
	MatchEventDeleted   = "match.deleted"
)
