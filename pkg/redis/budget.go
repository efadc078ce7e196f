package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// CostLedger tracks estimated per-project spend for the paid matching stages.
// The ledger is a soft budget: it is checked before each paid call, and a
// slight overshoot within one chunk is accepted.
type CostLedger struct {
	client *Client
	logger ectologger.Logger
}

// NewCostLedger creates a new cost ledger
func NewCostLedger(client *Client, logger ectologger.Logger) *CostLedger {
	return &CostLedger{client: client, logger: logger}
}

func costKey(projectID string) string {
	return "fern:cost:" + projectID
}

// Add records estimated spend for a project and returns the new running total
func (l *CostLedger) Add(ctx context.Context, projectID string, amountUSD float64) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.CostLedger.Add")
	defer span.End()

	total, err := l.client.rdb.IncrByFloat(ctx, costKey(projectID), amountUSD).Result()
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"project_id": projectID,
		}).Error("Failed to record estimated spend")
		return 0, fmt.Errorf("failed to record estimated spend: %w", err)
	}
	return total, nil
}

// Total returns the running estimated spend for a project. A missing key
// means no spend has been recorded.
func (l *CostLedger) Total(ctx context.Context, projectID string) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.CostLedger.Total")
	defer span.End()

	val, err := l.client.Get(ctx, costKey(projectID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read estimated spend: %w", err)
	}

	total, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed ledger value for project %s: %w", projectID, err)
	}
	return total, nil
}

// WithinBudget reports whether the project's running total is below the
// ceiling. Errors fail open so an unreachable ledger does not halt matching.
func (l *CostLedger) WithinBudget(ctx context.Context, projectID string, ceilingUSD float64) (bool, float64) {
	total, err := l.Total(ctx, projectID)
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"project_id": projectID,
		}).Warn("Cost ledger unavailable, allowing paid call")
		return true, 0
	}
	return total < ceilingUSD, total
}

// Reset clears a project's running total, used when a project is re-matched
// from scratch.
func (l *CostLedger) Reset(ctx context.Context, projectID string) error {
	return l.client.Del(ctx, costKey(projectID))
}

// Expire sets a TTL on the ledger key so abandoned projects age out
func (l *CostLedger) Expire(ctx context.Context, projectID string, ttl time.Duration) error {
	return l.client.Expire(ctx, costKey(projectID), ttl)
}
