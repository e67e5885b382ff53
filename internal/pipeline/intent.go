package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/insightctl/retail-insights/internal/llm"
)

// QueryIntent is the structured representation of a user's natural-language
// question, used to drive extraction strategy selection. Created once per
// question and immutable thereafter.
type QueryIntent struct {
	QueryType    string         `json:"query_type"`
	Entities     []string       `json:"entities"`
	Metrics      []string       `json:"metrics"`
	TimePeriod   string         `json:"time_period,omitempty"`
	Filters      map[string]any `json:"filters"`
	Aggregation  string         `json:"aggregation,omitempty"`
	SortBy       string         `json:"sort_by,omitempty"`
	Limit        int            `json:"limit,omitempty"`
	GeneratedSQL string         `json:"generated_sql,omitempty"`
}

var queryTypes = map[string]bool{
	"summary":     true,
	"comparison":  true,
	"trend":       true,
	"filter":      true,
	"aggregation": true,
}

// DefaultIntent is the deterministic intent substituted whenever resolution
// degrades: a plain summary with no entities, metrics, or filters.
func DefaultIntent() QueryIntent {
	return QueryIntent{
		QueryType: "summary",
		Entities:  []string{},
		Metrics:   []string{},
		Filters:   map[string]any{},
	}
}

const intentSystemPrompt = `You are an expert data analyst specialized in converting natural language queries
into structured query intents for retail sales data analysis.

Data Schema:
%s

Your task is to analyze the user's question and extract:
1. Query type (summary, comparison, trend, filter, aggregation)
2. Entities mentioned (products, regions, categories, time periods)
3. Metrics to analyze (sales, revenue, profit, growth rates)
4. Time periods and filters
5. Aggregation methods and sorting preferences

Record your analysis by calling the record_query_intent function.
Be precise and thorough in your analysis.`

const sqlSystemPrompt = `You are a SQL expert. Generate a valid SQL query to answer the user's question.

Database Schema:
%s

Table name: %s

Rules:
1. Use only columns that exist in the schema
2. Generate syntactically correct SQL
3. Use appropriate aggregations and filters
4. Include ORDER BY and LIMIT when relevant
5. Return ONLY the SQL query, no explanations`

// intentTool constrains one generation request to the QueryIntent shape.
var intentTool = []openai.ChatCompletionToolParam{
	{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String("record_query_intent"),
			Description: openai.String("record the structured intent extracted from the user's question"),
			Parameters: openai.F(openai.FunctionParameters(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"summary", "comparison", "trend", "filter", "aggregation"},
						"description": "type of analysis the question asks for",
					},
					"entities": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "main entities mentioned (products, regions, categories, etc.)",
					},
					"metrics": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "metrics to analyze (sales, revenue, profit, etc.)",
					},
					"time_period": map[string]interface{}{
						"type":        "string",
						"description": "time period mentioned (Q1, 2023, YoY, etc.)",
					},
					"filters": map[string]interface{}{
						"type":        "object",
						"description": "equality filters to apply, column name to value",
					},
					"aggregation": map[string]interface{}{
						"type":        "string",
						"description": "aggregation method (sum, avg, max, min, count)",
					},
					"sort_by": map[string]interface{}{
						"type":        "string",
						"description": "column to sort by",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "number of results to return",
					},
				},
				"required": []string{"query_type", "entities", "metrics"},
			})),
		}),
	},
}

// IntentResolver converts natural-language questions into structured intents
// and raw SQL. Every failure path degrades to a deterministic, well-formed
// default so downstream stages always receive usable input.
type IntentResolver struct {
	llm    llm.Provider
	schema string
	table  string
	log    *slog.Logger
}

func NewIntentResolver(provider llm.Provider, schemaDescription, tableName string, log *slog.Logger) *IntentResolver {
	return &IntentResolver{
		llm:    provider,
		schema: schemaDescription,
		table:  tableName,
		log:    log,
	}
}

// Resolve issues one structured-generation request constrained to the
// QueryIntent shape. On any parse or provider failure it returns the default
// intent; it never fails.
func (r *IntentResolver) Resolve(ctx context.Context, question string) QueryIntent {
	system := fmt.Sprintf(intentSystemPrompt, r.schema)

	resp, err := r.llm.Generate(ctx, system, question, llm.WithTools(intentTool))
	if err != nil {
		r.log.Warn("intent resolution degraded, using default intent", "error", err)
		return DefaultIntent()
	}

	payload := ""
	switch {
	case resp.FunctionCall != nil:
		payload = resp.FunctionCall.Arguments
	case resp.Content != "":
		// Some models answer with inline JSON instead of calling the tool.
		payload = stripCodeFences(resp.Content)
	}
	if payload == "" {
		r.log.Warn("intent resolution returned no structured payload, using default intent")
		return DefaultIntent()
	}

	intent, err := parseIntent(payload)
	if err != nil {
		r.log.Warn("intent payload failed schema validation, using default intent", "error", err)
		return DefaultIntent()
	}

	r.log.Info("query resolved", "query_type", intent.QueryType)
	return intent
}

// parseIntent is the schema-validation boundary between the best-effort model
// output and the rest of the pipeline.
func parseIntent(payload string) (QueryIntent, error) {
	var intent QueryIntent
	if err := json.Unmarshal([]byte(payload), &intent); err != nil {
		return QueryIntent{}, fmt.Errorf("failed to decode intent: %w", err)
	}
	if !queryTypes[intent.QueryType] {
		return QueryIntent{}, fmt.Errorf("unknown query_type %q", intent.QueryType)
	}
	if intent.Entities == nil {
		intent.Entities = []string{}
	}
	if intent.Metrics == nil {
		intent.Metrics = []string{}
	}
	if intent.Filters == nil {
		intent.Filters = map[string]any{}
	}
	if intent.Limit < 0 {
		intent.Limit = 0
	}
	return intent, nil
}

// GenerateSQL asks the model for a raw SQL query answering the question. On
// failure it returns a safe default selecting the first ten rows.
func (r *IntentResolver) GenerateSQL(ctx context.Context, question string) string {
	fallback := fmt.Sprintf("SELECT * FROM %s LIMIT 10", r.table)
	system := fmt.Sprintf(sqlSystemPrompt, r.schema, r.table)

	resp, err := r.llm.Generate(ctx, system, question)
	if err != nil {
		r.log.Warn("sql generation degraded, using default query", "error", err)
		return fallback
	}

	sql := stripCodeFences(resp.Content)
	if sql == "" {
		r.log.Warn("sql generation returned empty text, using default query")
		return fallback
	}

	r.log.Info("sql generated", "sql", truncate(sql, 100))
	return sql
}

// stripCodeFences removes Markdown code-fence wrapping, including an optional
// language marker, from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return ""
	}
	body := parts[1]
	for _, lang := range []string{"sql", "json"} {
		if strings.HasPrefix(strings.ToLower(body), lang) {
			body = body[len(lang):]
			break
		}
	}
	return strings.TrimSpace(body)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
