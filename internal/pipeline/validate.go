package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/insightctl/retail-insights/internal/dataset"
	"github.com/insightctl/retail-insights/internal/llm"
)

// ValidationResult grades an extracted relation against the question.
// quality_score is derived from the deterministic issue count and never
// reports higher fidelity than it.
type ValidationResult struct {
	IsValid      bool     `json:"is_valid"`
	Confidence   float64  `json:"confidence"`
	QualityScore float64  `json:"quality_score"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
	RowCount     int      `json:"row_count"`
	ColumnCount  int      `json:"column_count"`
}

// BusinessRule is a declarative data constraint checked by
// ValidateBusinessLogic.
type BusinessRule struct {
	Kind   string  `json:"kind"` // "positive" or "range"
	Column string  `json:"column"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
}

const validationSystemPrompt = `You are a data quality expert. Your task is to validate query results
and ensure they correctly answer the user's question.

Evaluate the following:
1. Does the data actually answer the user's question?
2. Is the data complete and not empty?
3. Are there any obvious data quality issues?
4. Does the result make business sense?
5. Are there any anomalies or outliers that need attention?

Start your response with exactly one of:
is_valid: true
is_valid: false
then list any problems found and recommendations for improvement.

Be thorough but concise.`

// Validator computes deterministic data-quality checks plus an LLM-judged
// semantic verdict.
type Validator struct {
	llm llm.Provider
	log *slog.Logger
}

func NewValidator(provider llm.Provider, log *slog.Logger) *Validator {
	return &Validator{llm: provider, log: log}
}

// Validate runs the deterministic checks first; they are authoritative
// contributors to the issue list. The LLM verdict can only widen is_valid,
// never the score. Validate never fails: an LLM error degrades to a
// heuristic verdict.
func (v *Validator) Validate(ctx context.Context, question, sqlText string, rel dataset.Relation) ValidationResult {
	issues, suggestions := deterministicChecks(rel)

	result := ValidationResult{
		Issues:      issues,
		Suggestions: suggestions,
		RowCount:    rel.RowCount(),
		ColumnCount: rel.ColumnCount(),
	}

	affirmed, err := v.judge(ctx, question, sqlText, rel)
	if err != nil {
		v.log.Warn("llm validation degraded, using heuristic verdict", "error", err)
		result.IsValid = len(issues) == 0
		if result.IsValid {
			result.Confidence = 0.7
		} else {
			result.Confidence = 0.3
		}
		result.QualityScore = result.Confidence
		return result
	}

	result.IsValid = affirmed || len(issues) == 0
	result.Confidence = clamp01(1.0 - 0.2*float64(len(issues)))
	result.QualityScore = result.Confidence
	return result
}

func deterministicChecks(rel dataset.Relation) (issues, suggestions []string) {
	issues = []string{}
	suggestions = []string{}

	if rel.IsEmpty() {
		issues = append(issues, "result is empty - no data returned")
		suggestions = append(suggestions, "review query filters or check if data exists for the criteria")
	}

	var nullCols []string
	for i, col := range rel.Columns {
		nulls := 0
		for _, row := range rel.Rows {
			if row[i] == nil {
				nulls++
			}
		}
		if nulls > 0 {
			nullCols = append(nullCols, fmt.Sprintf("%s (%d)", col.Name, nulls))
		}
	}
	if len(nullCols) > 0 {
		issues = append(issues, "null values found in columns: "+strings.Join(nullCols, ", "))
		suggestions = append(suggestions, "consider handling null values or filtering them out")
	}

	if dups := duplicateRowCount(rel); dups > 0 {
		issues = append(issues, fmt.Sprintf("found %d duplicate rows", dups))
		suggestions = append(suggestions, "consider removing duplicates or adding DISTINCT to query")
	}

	return issues, suggestions
}

func duplicateRowCount(rel dataset.Relation) int {
	seen := make(map[string]bool, len(rel.Rows))
	dups := 0
	for _, row := range rel.Rows {
		key := fmt.Sprintf("%v", row)
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return dups
}

// judge asks the LLM collaborator for a semantic verdict and scans the
// free-text response for the affirmative marker.
func (v *Validator) judge(ctx context.Context, question, sqlText string, rel dataset.Relation) (bool, error) {
	sample := "No data"
	if !rel.IsEmpty() {
		sample = rel.Render(10)
	}

	user := fmt.Sprintf(`Original Question: %s

Query Executed: %s

Result Summary:
%s

Sample Data:
%s

Please validate this result.`, question, sqlText, resultSummary(rel), sample)

	resp, err := v.llm.Generate(ctx, validationSystemPrompt, user)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(resp.Content), "is_valid: true"), nil
}

func resultSummary(rel dataset.Relation) string {
	if rel.IsEmpty() {
		return "Empty result"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rows: %d, Columns: %d\n", rel.RowCount(), rel.ColumnCount())
	fmt.Fprintf(&sb, "Columns: %s", strings.Join(rel.ColumnNames(), ", "))

	numeric := rel.NumericColumns()
	if len(numeric) > 0 {
		sb.WriteString("\nNumeric columns summary:")
		for _, idx := range numeric {
			vals := rel.NumericValues(idx)
			fmt.Fprintf(&sb, "\n  %s: min=%.2f, max=%.2f, mean=%.2f",
				rel.Columns[idx].Name, dataset.Min(vals), dataset.Max(vals), dataset.Mean(vals))
		}
	}
	return sb.String()
}

// CheckAnomalies flags extreme outliers per numeric column using IQR bounds
// [Q1 - 3*IQR, Q3 + 3*IQR]. The returned strings are informational only and
// are not folded into Validate's score.
func (v *Validator) CheckAnomalies(rel dataset.Relation) []string {
	var anomalies []string
	for _, idx := range rel.NumericColumns() {
		vals := rel.NumericValues(idx)
		if len(vals) == 0 {
			continue
		}
		q1 := dataset.Quantile(vals, 0.25)
		q3 := dataset.Quantile(vals, 0.75)
		iqr := q3 - q1
		lower := q1 - 3*iqr
		upper := q3 + 3*iqr

		outliers := 0
		for _, x := range vals {
			if x < lower || x > upper {
				outliers++
			}
		}
		if outliers > 0 {
			anomalies = append(anomalies, fmt.Sprintf(
				"%s: %d extreme outliers detected (range: %.2f to %.2f)",
				rel.Columns[idx].Name, outliers, lower, upper))
		}
	}
	return anomalies
}

// ValidateBusinessLogic evaluates declarative rules against a relation and
// returns violation descriptions. Not invoked by the main pipeline; callers
// run it independently.
func (v *Validator) ValidateBusinessLogic(rel dataset.Relation, rules []BusinessRule) []string {
	var violations []string
	for _, rule := range rules {
		idx := rel.ColumnIndex(rule.Column)
		if idx < 0 {
			continue
		}
		switch rule.Kind {
		case "positive":
			negatives := 0
			for _, x := range rel.NumericValues(idx) {
				if x < 0 {
					negatives++
				}
			}
			if negatives > 0 {
				violations = append(violations, fmt.Sprintf(
					"%s has %d negative values (expected all positive)", rule.Column, negatives))
			}
		case "range":
			outOfRange := 0
			for _, x := range rel.NumericValues(idx) {
				if x < rule.Min || x > rule.Max {
					outOfRange++
				}
			}
			if outOfRange > 0 {
				violations = append(violations, fmt.Sprintf(
					"%s has %d values outside expected range [%g, %g]", rule.Column, outOfRange, rule.Min, rule.Max))
			}
		}
	}
	return violations
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
