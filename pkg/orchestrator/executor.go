// Package orchestrator drives matching jobs: claiming, chunked execution,
// continuation, cancellation, and budget enforcement.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/catalogitem"
	"github.com/Ramsey-B/fern/internal/repositories/interchange"
	"github.com/Ramsey-B/fern/internal/repositories/masterrule"
	"github.com/Ramsey-B/fern/internal/repositories/matchcandidate"
	"github.com/Ramsey-B/fern/internal/repositories/matchingjob"
	"github.com/Ramsey-B/fern/internal/repositories/project"
	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/catalogcache"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/rules"
	"github.com/Ramsey-B/fern/pkg/supersession"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/websearch"
)

// EngineConfigFrom maps service configuration onto the matching engine
func EngineConfigFrom(cfg config.Config) matching.EngineConfig {
	engCfg := matching.DefaultConfig()
	engCfg.FuzzyPartThreshold = cfg.FuzzyPartThreshold
	engCfg.CostRatioCheckEnabled = cfg.CostRatioCheckEnabled
	engCfg.SelectorMaxCandidates = cfg.SelectorMaxCandidates
	engCfg.SelectorMinScore = cfg.SelectorMinScore
	if !cfg.InterchangeFirstTieBreak {
		engCfg.TieBreak = matching.TieBreakPrefixStrip
	}
	return engCfg
}

// Repos bundles the persistence dependencies of the executor
type Repos struct {
	Jobs        *matchingjob.Repository
	Projects    *project.Repository
	Items       *catalogitem.Repository
	Interchange *interchange.Repository
	Candidates  *matchcandidate.Repository
	Rules       *masterrule.Repository
}

// Matchers bundles the stage implementations
type Matchers struct {
	RuleEngine   *rules.Engine
	Exact        *matching.ExactMatcher
	Fuzzy        *matching.FuzzyMatcher
	Selector     *matching.Selector
	AI           *ai.Matcher
	Web          *websearch.Matcher
	Supersession *supersession.Matcher
}

// Executor processes one job chunk per Kafka message. Jobs survive worker
// crashes because every chunk is persisted before the message commits and
// the stale-lock claim lets another worker resume.
type Executor struct {
	cfg       config.Config
	repos     Repos
	matchers  Matchers
	producer  *kafka.Producer
	locker    *redis.Locker
	ledger    *redis.CostLedger
	suppliers *catalogcache.Cache
	workerID  string
	logger    ectologger.Logger
}

// NewExecutor creates a new job executor
func NewExecutor(
	cfg config.Config,
	repos Repos,
	matchers Matchers,
	producer *kafka.Producer,
	locker *redis.Locker,
	ledger *redis.CostLedger,
	suppliers *catalogcache.Cache,
	workerID string,
	logger ectologger.Logger,
) *Executor {
	return &Executor{
		cfg:       cfg,
		repos:     repos,
		matchers:  matchers,
		producer:  producer,
		locker:    locker,
		ledger:    ledger,
		suppliers: suppliers,
		workerID:  workerID,
		logger:    logger,
	}
}

// stageFloor is the exclusion bound for a job type: items that already have
// a candidate below this stage are settled and skipped.
func stageFloor(jobType models.MatchingJobType) int {
	switch jobType {
	case models.MatchingJobTypeExact:
		return models.MatchStageExact
	case models.MatchingJobTypeFuzzy:
		return models.MatchStageFuzzy
	case models.MatchingJobTypeAI:
		return models.MatchStageAI
	case models.MatchingJobTypeWebSearch:
		return models.MatchStageWebSearch
	default:
		// Supersession runs after web search and skips its matches too
		return models.MatchStageWebSearch + 1
	}
}

func (e *Executor) chunkSize(jobType models.MatchingJobType) int {
	switch jobType {
	case models.MatchingJobTypeExact:
		return e.cfg.ExactChunkSize
	case models.MatchingJobTypeFuzzy:
		return e.cfg.FuzzyChunkSize
	case models.MatchingJobTypeAI:
		return e.cfg.AIChunkSize
	case models.MatchingJobTypeWebSearch:
		return e.cfg.WebSearchChunkSize
	default:
		return e.cfg.SupersessionChunkSize
	}
}

func isPaid(jobType models.MatchingJobType) bool {
	switch jobType {
	case models.MatchingJobTypeAI, models.MatchingJobTypeWebSearch, models.MatchingJobTypeSupersession:
		return true
	}
	return false
}

// stageCursorFor maps a job type to the project stage it completes
func stageCursorFor(jobType models.MatchingJobType) models.ProjectStage {
	switch jobType {
	case models.MatchingJobTypeExact:
		return models.ProjectStageExact
	case models.MatchingJobTypeFuzzy:
		return models.ProjectStageFuzzy
	case models.MatchingJobTypeAI:
		return models.ProjectStageAI
	default:
		return models.ProjectStageWebSearch
	}
}

// chunkResult summarizes one chunk execution. processed counts only items
// the chunk actually finished; a budget or cancellation break mid-chunk
// leaves the rest uncounted.
type chunkResult struct {
	processed    int
	matches      int
	costUSD      float64
	lastID       string
	more         bool
	cancelled    bool
	budgetPaused bool
}

// HandleMessage is the Kafka handler: claim the job, run one chunk, persist
// progress, then either re-publish the continuation or finish the job.
// Returning an error leaves the message uncommitted for redelivery.
func (e *Executor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Executor.HandleMessage")
	defer span.End()

	jm := msg.JobMessage
	ctx = appctx.SetTenantID(ctx, jm.TenantID)
	ctx = appctx.SetRequestID(ctx, jm.JobID)

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":   jm.JobID,
		"job_type": jm.JobType,
		"cursor":   jm.Cursor,
	})

	job, err := e.repos.Jobs.Claim(ctx, jm.JobID, e.workerID, e.cfg.StaleJobTimeout)
	if err != nil {
		return err
	}
	if job == nil {
		// Held by a live worker or already terminal; nothing to do here
		log.Debug("Job not claimable, skipping message")
		return nil
	}

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	if job.CancellationRequested {
		return e.finishCancelled(ctx, job)
	}

	proj, err := e.repos.Projects.Get(ctx, job.TenantID, job.ProjectID)
	if err != nil {
		log.WithError(err).Error("Failed to load project for job")
		return e.failJob(ctx, job, fmt.Errorf("project lookup failed: %w", err))
	}

	if isPaid(job.JobType) {
		if paused := e.pauseIfOverBudget(ctx, job, proj); paused {
			return nil
		}
	}

	if jm.Cursor == "" && job.TotalItems == 0 {
		if err := e.prepare(ctx, job); err != nil {
			return e.failJob(ctx, job, err)
		}
	}

	start := time.Now()
	res, err := e.runChunk(ctx, job, proj, jm.Cursor)
	metrics.RecordChunkDuration(string(job.JobType), time.Since(start).Seconds())
	if err != nil {
		return e.failJob(ctx, job, err)
	}

	if err := e.repos.Jobs.UpdateProgress(ctx, job.ID, e.workerID, res.processed, res.matches, res.costUSD); err != nil {
		return err
	}
	metrics.RecordItemsProcessed(string(job.JobType), res.processed)
	if res.costUSD > 0 {
		metrics.RecordEstimatedSpend(string(job.JobType), res.costUSD)
		if _, err := e.ledger.Add(ctx, job.ProjectID, res.costUSD); err != nil {
			log.WithError(err).Warn("Failed to record spend in cost ledger")
		}
	}

	if res.cancelled || e.cancellationRequested(ctx, job) {
		return e.finishCancelled(ctx, job)
	}

	if res.budgetPaused {
		return e.pauseForBudget(ctx, job)
	}

	if res.more {
		return e.producer.PublishJob(ctx, &kafka.JobMessage{
			JobID:     job.ID,
			TenantID:  job.TenantID,
			ProjectID: job.ProjectID,
			JobType:   job.JobType,
			Cursor:    res.lastID,
			Attempt:   jm.Attempt,
		})
	}

	if err := e.repos.Jobs.MarkCompleted(ctx, job.ID, e.workerID); err != nil {
		return err
	}
	metrics.RecordJobProcessed(string(job.JobType), models.MatchingJobStatusCompleted)

	if err := e.repos.Projects.AdvanceStage(ctx, job.TenantID, job.ProjectID, stageCursorFor(job.JobType)); err != nil {
		log.WithError(err).Warn("Failed to advance project stage")
	}

	log.WithFields(map[string]any{
		"processed": job.ProcessedItems + res.processed,
	}).Info("Matching job completed")
	return nil
}

// prepare runs once per job before its first chunk
func (e *Executor) prepare(ctx context.Context, job *models.MatchingJob) error {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Executor.prepare")
	defer span.End()

	if job.JobType == models.MatchingJobTypeExact {
		// A fresh exact run re-matches the project from scratch. The lock
		// keeps two exact jobs from clearing each other's work.
		lock, err := e.locker.TryAcquire(ctx, "rematch:"+job.ProjectID, time.Minute, 10*time.Second)
		if err != nil {
			return fmt.Errorf("failed to lock project for re-match: %w", err)
		}
		defer func() { _ = lock.Release(ctx) }()

		deleted, err := e.repos.Candidates.DeleteByProject(ctx, job.TenantID, job.ProjectID)
		if err != nil {
			return err
		}
		if err := e.ledger.Reset(ctx, job.ProjectID); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to reset cost ledger")
		}
		e.suppliers.Invalidate(job.ProjectID)
		if err := e.repos.Projects.SetStage(ctx, job.TenantID, job.ProjectID, models.ProjectStageExact); err != nil {
			return err
		}
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"project_id": job.ProjectID,
			"deleted":    deleted,
		}).Info("Cleared candidates for re-match")
	}

	total, err := e.repos.Items.CountUnmatched(ctx, job.TenantID, job.ProjectID, stageFloor(job.JobType))
	if err != nil {
		return err
	}
	return e.repos.Jobs.SetTotalItems(ctx, job.ID, total)
}

func (e *Executor) runChunk(ctx context.Context, job *models.MatchingJob, proj *models.Project, cursor string) (*chunkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Executor.runChunk")
	defer span.End()

	size := e.chunkSize(job.JobType)
	items, err := e.repos.Items.ListUnmatched(ctx, job.TenantID, job.ProjectID, stageFloor(job.JobType), size, cursor)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &chunkResult{}, nil
	}

	projectRules, err := e.repos.Rules.ListForProject(ctx, job.TenantID, job.ProjectID)
	if err != nil {
		return nil, err
	}
	suppliers, err := e.suppliers.Get(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}

	// Stage 0 runs on every invocation, whatever the job type
	remaining, confirmed, err := e.applyMasterRules(ctx, job, items, suppliers, projectRules)
	if err != nil {
		return nil, err
	}

	var res *chunkResult
	switch job.JobType {
	case models.MatchingJobTypeExact:
		res, err = e.runExactChunk(ctx, job, remaining, suppliers, projectRules)
	case models.MatchingJobTypeFuzzy:
		res, err = e.runFuzzyChunk(ctx, job, remaining, suppliers, projectRules)
	case models.MatchingJobTypeAI:
		res, err = e.runAIChunk(ctx, job, proj, remaining, suppliers, projectRules)
	case models.MatchingJobTypeWebSearch:
		res, err = e.runWebSearchChunk(ctx, job, remaining, suppliers, projectRules)
	case models.MatchingJobTypeSupersession:
		res, err = e.runSupersessionChunk(ctx, job, proj, remaining, suppliers, projectRules)
	default:
		return nil, fmt.Errorf("unknown job type %q", job.JobType)
	}
	if err != nil {
		return nil, err
	}

	res.matches += confirmed
	res.processed += len(items) - len(remaining)
	res.lastID = items[len(items)-1].ID
	if !res.cancelled && !res.budgetPaused {
		res.more = len(items) == size
	}
	return res, nil
}

// applyMasterRules is the stage 0 pass: positive rules confirm their pairs
// outright and negative rules retract any candidate they forbid. Returns the
// items the rules did not settle and the confirmed candidate count.
func (e *Executor) applyMasterRules(ctx context.Context, job *models.MatchingJob, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) ([]models.CatalogItem, int, error) {
	if len(projectRules) == 0 {
		return items, 0, nil
	}

	existing, err := e.repos.Candidates.ExistingPairs(ctx, job.TenantID, job.ProjectID)
	if err != nil {
		return nil, 0, err
	}
	outcome := e.matchers.RuleEngine.Apply(projectRules, items, suppliers, existing)
	for _, blocked := range outcome.Blocked {
		if _, err := e.repos.Candidates.DeleteByPair(ctx, job.TenantID, job.ProjectID, blocked.SourceItemID, blocked.TargetID); err != nil {
			return nil, 0, err
		}
	}
	if len(outcome.AppliedRuleIDs) > 0 {
		if err := e.repos.Rules.IncrementTimesApplied(ctx, job.TenantID, outcome.AppliedRuleIDs); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to record rule usage")
		}
	}
	if err := e.persistCandidates(ctx, outcome.Confirmed); err != nil {
		return nil, 0, err
	}

	ruled := make(map[string]bool, len(outcome.Confirmed))
	for _, c := range outcome.Confirmed {
		ruled[c.SourceItemID] = true
	}
	remaining := make([]models.CatalogItem, 0, len(items))
	for i := range items {
		if !ruled[items[i].ID] {
			remaining = append(remaining, items[i])
		}
	}
	return remaining, len(outcome.Confirmed), nil
}

func (e *Executor) runExactChunk(ctx context.Context, job *models.MatchingJob, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) (*chunkResult, error) {
	parts := make([]string, 0, len(items))
	for i := range items {
		if items[i].PartNumberNorm != "" {
			parts = append(parts, items[i].PartNumberNorm)
		}
	}
	interchangeRows, err := e.repos.Interchange.ListBySourceParts(ctx, job.TenantID, job.ProjectID, parts)
	if err != nil {
		return nil, err
	}

	candidates := e.matchers.Exact.Match(items, suppliers, interchangeRows)
	candidates = filterBlockedPairs(candidates, projectRules, items, suppliers)

	if err := e.persistCandidates(ctx, candidates); err != nil {
		return nil, err
	}
	return &chunkResult{processed: len(items), matches: len(candidates)}, nil
}

func (e *Executor) runFuzzyChunk(ctx context.Context, job *models.MatchingJob, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) (*chunkResult, error) {
	var candidates []*models.MatchCandidate
	for i := range items {
		src := &items[i]
		if src.PartNumberNorm == "" {
			continue
		}
		dbCandidates, err := e.repos.Items.ListFuzzyCandidates(ctx, job.TenantID, job.ProjectID, src.PartNumberNorm, e.cfg.FuzzyPartThreshold, e.cfg.SelectorMaxCandidates)
		if err != nil {
			return nil, err
		}
		if best := e.matchers.Fuzzy.BestMatch(src, dbCandidates); best != nil {
			candidates = append(candidates, best)
		}
	}

	candidates = filterBlockedPairs(candidates, projectRules, items, suppliers)
	if err := e.persistCandidates(ctx, candidates); err != nil {
		return nil, err
	}
	return &chunkResult{processed: len(items), matches: len(candidates)}, nil
}

func (e *Executor) runAIChunk(ctx context.Context, job *models.MatchingJob, proj *models.Project, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) (*chunkResult, error) {
	res := &chunkResult{}
	var candidates []*models.MatchCandidate
	for i := range items {
		if e.cancellationIsImmediate(ctx, job) {
			res.cancelled = true
			break
		}
		if over := !e.withinBudget(ctx, job, proj, res.costUSD); over {
			res.budgetPaused = true
			break
		}

		src := &items[i]
		selected := e.matchers.Selector.Select(src, suppliers)
		if len(selected) == 0 {
			res.processed++
			continue
		}

		candidate, err := e.matchers.AI.MatchItem(ctx, src, selected)
		if err != nil {
			return nil, err
		}
		res.costUSD += e.matchers.AI.CostPerItem()
		res.processed++
		if candidate != nil {
			candidates = append(candidates, candidate)
		}
	}

	candidates = filterBlockedPairs(candidates, projectRules, items, suppliers)
	if err := e.persistCandidates(ctx, candidates); err != nil {
		return nil, err
	}
	res.matches = len(candidates)
	return res, nil
}

func (e *Executor) runWebSearchChunk(ctx context.Context, job *models.MatchingJob, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) (*chunkResult, error) {
	candidates, usage, err := e.matchers.Web.MatchChunk(ctx, items, suppliers)
	if err != nil {
		return nil, err
	}

	candidates = filterBlockedPairs(candidates, projectRules, items, suppliers)
	if err := e.persistCandidates(ctx, candidates); err != nil {
		return nil, err
	}

	return &chunkResult{
		processed: len(items),
		matches:   len(candidates),
		costUSD:   float64(usage.SearchCalls)*e.cfg.SearchCostPerCallUSD + float64(usage.LLMCalls)*e.cfg.LLMCostPerItemUSD,
	}, nil
}

func (e *Executor) runSupersessionChunk(ctx context.Context, job *models.MatchingJob, proj *models.Project, items []models.CatalogItem, suppliers []models.CatalogItem, projectRules []models.MasterRule) (*chunkResult, error) {
	interchangeRows, err := e.repos.Interchange.ListByProject(ctx, job.TenantID, job.ProjectID)
	if err != nil {
		return nil, err
	}

	res := &chunkResult{}
	var candidates []*models.MatchCandidate
	for i := range items {
		if e.cancellationIsImmediate(ctx, job) {
			res.cancelled = true
			break
		}
		if over := !e.withinBudget(ctx, job, proj, res.costUSD); over {
			res.budgetPaused = true
			break
		}

		candidate, usage, err := e.matchers.Supersession.MatchItem(ctx, &items[i], suppliers, interchangeRows)
		if err != nil {
			return nil, err
		}
		res.costUSD += float64(usage.SearchCalls)*e.cfg.SearchCostPerCallUSD + float64(usage.LLMCalls)*e.cfg.LLMCostPerItemUSD
		res.processed++
		if candidate != nil {
			candidates = append(candidates, candidate)
		}
	}

	candidates = filterBlockedPairs(candidates, projectRules, items, suppliers)
	if err := e.persistCandidates(ctx, candidates); err != nil {
		return nil, err
	}
	res.matches = len(candidates)
	return res, nil
}

// persistCandidates writes candidates and publishes their creation events
func (e *Executor) persistCandidates(ctx context.Context, candidates []*models.MatchCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	if err := e.repos.Candidates.CreateBatch(ctx, candidates); err != nil {
		return err
	}

	events := make([]*kafka.MatchEvent, len(candidates))
	for i, c := range candidates {
		metrics.RecordMatchFound(string(c.Method))
		events[i] = kafka.EventForCandidate(kafka.MatchEventCreated, c)
	}
	if err := e.producer.PublishMatchEvents(ctx, events); err != nil {
		// Candidates are already persisted; event loss is tolerable
		e.logger.WithContext(ctx).WithError(err).Warn("Failed to publish match events")
	}
	return nil
}

// filterBlockedPairs drops candidates whose exact (store part, supplier
// part) pairing a negative rule forbids. A rule blocks only its own pair;
// other sources matching the same supplier part are untouched. Rule matches
// themselves are exempt, the engine already decided their fate.
func filterBlockedPairs(candidates []*models.MatchCandidate, projectRules []models.MasterRule, sources, suppliers []models.CatalogItem) []*models.MatchCandidate {
	blocked := make(map[string]map[string]bool)
	for i := range projectRules {
		r := &projectRules[i]
		if r.RuleType != models.MasterRuleTypeNegativeBlock {
			continue
		}
		if blocked[r.StorePartNorm] == nil {
			blocked[r.StorePartNorm] = make(map[string]bool)
		}
		blocked[r.StorePartNorm][r.SupplierPartNorm] = true
	}
	if len(blocked) == 0 {
		return candidates
	}

	sourceNorm := make(map[string]string, len(sources))
	for i := range sources {
		sourceNorm[sources[i].ID] = sources[i].PartNumberNorm
	}
	supplierNorm := make(map[string]string, len(suppliers))
	for i := range suppliers {
		supplierNorm[suppliers[i].ID] = suppliers[i].PartNumberNorm
	}

	var out []*models.MatchCandidate
	for _, c := range candidates {
		if c.TargetID != nil && c.Method != models.MatchMethodMasterRule {
			if blocked[sourceNorm[c.SourceItemID]][supplierNorm[*c.TargetID]] {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// withinBudget checks the project ceiling including this chunk's running cost
func (e *Executor) withinBudget(ctx context.Context, job *models.MatchingJob, proj *models.Project, pendingCost float64) bool {
	ceiling := proj.AIBudgetUSD
	if ceiling <= 0 {
		ceiling = e.cfg.DefaultAIBudgetUSD
	}
	ok, total := e.ledger.WithinBudget(ctx, job.ProjectID, ceiling)
	if !ok {
		return false
	}
	return total+pendingCost < ceiling
}

// pauseIfOverBudget parks the job when the project is already over its
// ceiling. Returns true when the job was paused.
func (e *Executor) pauseIfOverBudget(ctx context.Context, job *models.MatchingJob, proj *models.Project) bool {
	if e.withinBudget(ctx, job, proj, 0) {
		return false
	}
	if err := e.pauseForBudget(ctx, job); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to pause job over budget")
	}
	return true
}

// pauseForBudget parks the job as paused with progress intact. The resume
// endpoint re-queues it once the operator raises the budget; the next
// invocation recomputes the remaining work from candidate state.
func (e *Executor) pauseForBudget(ctx context.Context, job *models.MatchingJob) error {
	metrics.BudgetPausesTotal.Inc()
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":     job.ID,
		"project_id": job.ProjectID,
	}).Warn("Project budget exhausted, pausing job")
	return e.repos.Jobs.MarkPaused(ctx, job.ID, e.workerID)
}

// cancellationRequested re-reads the job row for a cancellation flag
func (e *Executor) cancellationRequested(ctx context.Context, job *models.MatchingJob) bool {
	fresh, err := e.repos.Jobs.Get(ctx, job.TenantID, job.ID)
	if err != nil {
		return false
	}
	if fresh.CancellationRequested {
		job.CancellationType = fresh.CancellationType
		return true
	}
	return false
}

// cancellationIsImmediate reports whether the job must stop mid-chunk.
// Graceful cancellations let the current chunk finish.
func (e *Executor) cancellationIsImmediate(ctx context.Context, job *models.MatchingJob) bool {
	if !e.cancellationRequested(ctx, job) {
		return false
	}
	return job.CancellationType != nil && *job.CancellationType == models.CancellationTypeImmediate
}

func (e *Executor) finishCancelled(ctx context.Context, job *models.MatchingJob) error {
	if err := e.repos.Jobs.MarkCancelled(ctx, job.ID, e.workerID); err != nil {
		return err
	}
	metrics.RecordJobProcessed(string(job.JobType), models.MatchingJobStatusCancelled)
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id": job.ID,
	}).Info("Matching job cancelled")
	return nil
}

func (e *Executor) failJob(ctx context.Context, job *models.MatchingJob, cause error) error {
	e.logger.WithContext(ctx).WithError(cause).WithFields(map[string]any{
		"job_id": job.ID,
	}).Error("Matching job failed")
	if err := e.repos.Jobs.MarkFailed(ctx, job.ID, e.workerID, cause.Error()); err != nil {
		return err
	}
	metrics.RecordJobProcessed(string(job.JobType), models.MatchingJobStatusFailed)
	return nil
}
