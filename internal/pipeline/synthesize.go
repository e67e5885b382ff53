package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/insightctl/retail-insights/internal/dataset"
	"github.com/insightctl/retail-insights/internal/llm"
)

// digestRows bounds how many verbatim rows a prompt digest carries.
const digestRows = 20

const summarySystemPrompt = `You are a senior business analyst providing insights from retail sales data.
Your task is to generate clear, actionable insights in natural language.

Guidelines:
1. Be concise but comprehensive
2. Highlight key findings and trends
3. Use business language, not technical jargon
4. Provide context and comparisons when relevant
5. Structure your response with clear sections
6. Include specific numbers and percentages
7. End with actionable recommendations when appropriate

Format your response in a professional, readable manner.`

const answerSystemPrompt = `You are a helpful data assistant for retail analytics.
Answer questions naturally and conversationally while being accurate and informative.

Keep responses:
- Clear and direct
- Focused on the question asked
- Supported by the data
- Professional but friendly`

// Synthesizer turns a relation plus validation result into natural-language
// prose. Both entry points fall back to a deterministic templated answer on
// LLM failure; they never fail.
type Synthesizer struct {
	llm llm.Provider
	log *slog.Logger
}

func NewSynthesizer(provider llm.Provider, log *slog.Logger) *Synthesizer {
	return &Synthesizer{llm: provider, log: log}
}

// GenerateSummary produces an analyst-style insight summary.
func (s *Synthesizer) GenerateSummary(ctx context.Context, question string, rel dataset.Relation, validation ValidationResult) string {
	user := fmt.Sprintf(`Question: %s

Data Analysis Results:
%s

Validation Status:
%s

Please provide a comprehensive analysis and insights.`, question, dataDigest(rel), formatValidation(validation))

	resp, err := s.llm.Generate(ctx, summarySystemPrompt, user)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		s.log.Warn("summary synthesis degraded, using templated summary", "error", err)
		return fallbackSummary(question, rel)
	}
	return resp.Content
}

// GenerateAnswer produces a conversational answer from the same digest.
func (s *Synthesizer) GenerateAnswer(ctx context.Context, question string, rel dataset.Relation) string {
	user := fmt.Sprintf(`Question: %s

Data Results:
%s

Please answer the question based on this data.`, question, dataDigest(rel))

	resp, err := s.llm.Generate(ctx, answerSystemPrompt, user)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		s.log.Warn("answer synthesis degraded, using templated answer", "error", err)
		return fallbackAnswer(question, rel)
	}
	return resp.Content
}

// dataDigest builds the bounded relation digest sent to the model: counts,
// column names, verbatim rows up to the cap, and descriptive statistics.
func dataDigest(rel dataset.Relation) string {
	if rel.IsEmpty() {
		return "No data available"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total Records: %d\n", rel.RowCount())
	fmt.Fprintf(&sb, "Columns: %s\n\n", strings.Join(rel.ColumnNames(), ", "))

	if rel.RowCount() <= digestRows {
		sb.WriteString("Complete Data:\n")
		sb.WriteString(rel.Render(-1))
	} else {
		fmt.Fprintf(&sb, "Sample Data (first %d rows):\n", digestRows)
		sb.WriteString(rel.Render(digestRows))
	}

	if len(rel.NumericColumns()) > 0 {
		sb.WriteString("\nStatistical Summary:\n")
		sb.WriteString(rel.Describe().Render(-1))
	}
	return sb.String()
}

func formatValidation(v ValidationResult) string {
	parts := []string{
		fmt.Sprintf("Valid: %t", v.IsValid),
		fmt.Sprintf("Confidence: %.0f%%", v.Confidence*100),
		fmt.Sprintf("Quality Score: %.0f%%", v.QualityScore*100),
		fmt.Sprintf("Rows: %d", v.RowCount),
		fmt.Sprintf("Columns: %d", v.ColumnCount),
	}
	if len(v.Issues) > 0 {
		parts = append(parts, "\nIssues:")
		for _, issue := range v.Issues {
			parts = append(parts, "  - "+issue)
		}
	}
	if len(v.Suggestions) > 0 {
		parts = append(parts, "\nSuggestions:")
		for _, s := range v.Suggestions {
			parts = append(parts, "  - "+s)
		}
	}
	return strings.Join(parts, "\n")
}

// fallbackSummary is the deterministic templated summary: record count plus
// total and average for every numeric column.
func fallbackSummary(question string, rel dataset.Relation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis Results for: %s\n\n", question)
	fmt.Fprintf(&sb, "Data Summary:\n  - Total records: %d\n  - Columns: %s\n",
		rel.RowCount(), strings.Join(rel.ColumnNames(), ", "))

	if !rel.IsEmpty() {
		sb.WriteString("\nSample Data:\n")
		sb.WriteString(rel.Render(5))
		numeric := rel.NumericColumns()
		if len(numeric) > 0 {
			sb.WriteString("\nKey Statistics:\n")
			for _, idx := range numeric {
				vals := rel.NumericValues(idx)
				fmt.Fprintf(&sb, "  %s: Total = %.2f, Average = %.2f\n",
					rel.Columns[idx].Name, dataset.Sum(vals), dataset.Mean(vals))
			}
		}
	}
	return sb.String()
}

func fallbackAnswer(question string, rel dataset.Relation) string {
	if rel.IsEmpty() {
		return fmt.Sprintf("I couldn't find any data to answer: %s", question)
	}
	return fmt.Sprintf(`Based on the data analysis:

%s
Total records found: %d

Please note: This is a simplified response. The system encountered an issue generating a detailed analysis.`,
		rel.Render(10), rel.RowCount())
}
