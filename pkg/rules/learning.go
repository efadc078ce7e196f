package rules

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// LearnInput carries the review context the learning step needs. Part
// numbers are the raw catalog values; normalization happens here.
type LearnInput struct {
	TenantID      string
	ProjectID     string
	Decision      string
	StorePart     string
	SupplierPart  string
	CorrectedPart string
	ReviewedBy    string
	Confidence    float64
}

// RulesFromDecision converts one review decision into the master rules it
// implies. Approvals map the pair, rejections block it, and corrections do
// both: block the original target and map the corrected one. Learned rules
// are project-scoped; operators promote them to global deliberately.
func RulesFromDecision(in LearnInput) ([]models.MasterRule, error) {
	store := normalizers.PartNumber(in.StorePart)
	supplier := normalizers.PartNumber(in.SupplierPart)
	if store == "" || supplier == "" {
		return nil, fmt.Errorf("cannot learn from empty part numbers")
	}

	confidence := in.Confidence
	if confidence <= 0 {
		confidence = 1.0
	}
	projectID := in.ProjectID
	base := models.MasterRule{
		TenantID:   in.TenantID,
		Scope:      models.MasterRuleScopeProject,
		ProjectID:  &projectID,
		Confidence: confidence,
	}
	if in.ReviewedBy != "" {
		by := in.ReviewedBy
		base.CreatedBy = &by
	}

	switch in.Decision {
	case models.ReviewDecisionApprove:
		rule := base
		rule.RuleType = models.MasterRuleTypePositiveMap
		rule.StorePartNorm = store
		rule.SupplierPartNorm = supplier
		return []models.MasterRule{rule}, nil

	case models.ReviewDecisionReject:
		rule := base
		rule.RuleType = models.MasterRuleTypeNegativeBlock
		rule.StorePartNorm = store
		rule.SupplierPartNorm = supplier
		return []models.MasterRule{rule}, nil

	case models.ReviewDecisionCorrect:
		corrected := normalizers.PartNumber(in.CorrectedPart)
		if corrected == "" {
			return nil, fmt.Errorf("correction requires the corrected part number")
		}
		block := base
		block.RuleType = models.MasterRuleTypeNegativeBlock
		block.StorePartNorm = store
		block.SupplierPartNorm = supplier

		mapped := base
		mapped.RuleType = models.MasterRuleTypePositiveMap
		mapped.StorePartNorm = store
		mapped.SupplierPartNorm = corrected
		return []models.MasterRule{block, mapped}, nil

	default:
		return nil, fmt.Errorf("unknown review decision %q", in.Decision)
	}
}

// csvHeader is the required first row of a bulk decision import
var csvHeader = []string{"decision", "store_part_number", "supplier_part_number", "corrected_part_number", "project_id", "reviewed_by", "confidence"}

// ParseDecisionsCSV reads a bulk import of historical review decisions, one
// decision per row. The file must carry the header row; corrected_part_number
// is required only for corrections, reviewed_by and confidence may be blank.
// The caller sets the tenant and feeds each row through RulesFromDecision.
func ParseDecisionsCSV(r io.Reader) ([]LearnInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if !headerMatches(header) {
		return nil, fmt.Errorf("unexpected csv header, want %s", strings.Join(csvHeader, ","))
	}

	var out []LearnInput
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		in := LearnInput{
			Decision:      strings.TrimSpace(record[0]),
			StorePart:     strings.TrimSpace(record[1]),
			SupplierPart:  strings.TrimSpace(record[2]),
			CorrectedPart: strings.TrimSpace(record[3]),
			ProjectID:     strings.TrimSpace(record[4]),
			ReviewedBy:    strings.TrimSpace(record[5]),
		}
		if in.ProjectID == "" {
			return nil, fmt.Errorf("csv line %d: project_id is required", line)
		}
		if c := strings.TrimSpace(record[6]); c != "" {
			confidence, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: malformed confidence %q", line, c)
			}
			in.Confidence = confidence
		}
		out = append(out, in)
	}
	return out, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(csvHeader) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(strings.ToLower(h)) != csvHeader[i] {
			return false
		}
	}
	return true
}
