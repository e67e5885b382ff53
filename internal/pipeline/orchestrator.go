package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/insightctl/retail-insights/internal/dataset"
)

// State names for the linear stage machine. Each run walks them strictly in
// order; there are no branches, cycles, or retries.
const (
	StateResolvingIntent = "resolving_intent"
	StateExtracting      = "extracting"
	StateValidating      = "validating"
	StateSynthesizing    = "synthesizing"
	StateDone            = "done"
)

// noDataAnswer short-circuits synthesis when extraction produced nothing.
const noDataAnswer = "I couldn't find any data to answer your question. Please try rephrasing or check if the data exists."

// summaryQuestion is the canonical question used for the overall dataset
// summary.
const summaryQuestion = "Provide a comprehensive summary of the retail sales data, including key metrics, trends, and insights."

// PipelineState is the shared mutable working record of one run. It is
// created fresh per question and discarded once the response is returned.
// Trace is append-only for the run's lifetime.
type PipelineState struct {
	RunID       string
	State       string
	Question    string
	Intent      QueryIntent
	SQLQuery    string
	Data        dataset.Relation
	Validation  ValidationResult
	FinalAnswer string
	Trace       []string
	Err         string
}

// Response is the public projection of a completed run.
type Response struct {
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Data       dataset.Relation `json:"data"`
	Validation ValidationResult `json:"validation"`
	SQLQuery   string           `json:"sqlQuery"`
	Trace      []string         `json:"trace"`
	Error      string           `json:"error,omitempty"`
}

// Orchestrator drives the four stages over one shared PipelineState. Stage
// failures are isolated: a degraded input is substituted for the next stage
// instead of aborting, so every run reaches done with a user-facing answer.
type Orchestrator struct {
	intents     *IntentResolver
	extractor   *Extractor
	validator   *Validator
	synthesizer *Synthesizer
	log         *slog.Logger
}

func NewOrchestrator(intents *IntentResolver, extractor *Extractor, validator *Validator, synthesizer *Synthesizer, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		intents:     intents,
		extractor:   extractor,
		validator:   validator,
		synthesizer: synthesizer,
		log:         log,
	}
}

// Process drives one question through all four stages and returns the public
// projection. A fault outside stage boundaries is caught at the top and
// surfaced verbatim as the final answer.
func (o *Orchestrator) Process(ctx context.Context, question string) (resp Response) {
	state := &PipelineState{
		RunID:    uuid.NewString(),
		State:    StateResolvingIntent,
		Question: question,
		Data:     dataset.Relation{},
		Trace:    []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("pipeline fault", "run_id", state.RunID, "fault", r)
			resp = Response{
				Question:   question,
				Answer:     fmt.Sprintf("An error occurred while processing your question: %v", r),
				Data:       dataset.Relation{},
				Validation: ValidationResult{},
				Trace:      state.Trace,
				Error:      fmt.Sprintf("%v", r),
			}
		}
	}()

	o.log.Info("processing question", "run_id", state.RunID, "question", question)

	o.resolveStage(ctx, state)
	o.extractStage(ctx, state)
	o.validateStage(ctx, state)
	o.synthesizeStage(ctx, state)
	state.State = StateDone

	return Response{
		Question:   state.Question,
		Answer:     state.FinalAnswer,
		Data:       state.Data,
		Validation: state.Validation,
		SQLQuery:   state.SQLQuery,
		Trace:      state.Trace,
		Error:      state.Err,
	}
}

// resolveStage fills in the intent and the raw SQL. Resolution never fails;
// it degrades to deterministic defaults inside the resolver.
func (o *Orchestrator) resolveStage(ctx context.Context, state *PipelineState) {
	state.State = StateResolvingIntent
	state.Intent = o.intents.Resolve(ctx, state.Question)
	state.SQLQuery = o.intents.GenerateSQL(ctx, state.Question)
	state.Trace = append(state.Trace, fmt.Sprintf("query resolved: %s", state.Intent.QueryType))
}

// extractStage runs the generated SQL, or the intent-driven strategy when no
// SQL was produced. This is the one stage whose failure is recorded as an
// error; the empty relation is substituted so downstream stages still run.
func (o *Orchestrator) extractStage(ctx context.Context, state *PipelineState) {
	state.State = StateExtracting

	if state.SQLQuery == "" {
		state.Data = o.extractor.ExtractByIntent(state.Intent)
		state.Trace = append(state.Trace, fmt.Sprintf("extracted %d rows by intent", state.Data.RowCount()))
		return
	}

	rel, err := o.extractor.ExecuteSQL(ctx, state.SQLQuery)
	if err != nil {
		o.log.Error("data extraction failed", "run_id", state.RunID, "error", err)
		state.Err = fmt.Sprintf("data extraction failed: %v", err)
		state.Trace = append(state.Trace, fmt.Sprintf("error in data extraction: %v", err))
		state.Data = dataset.Relation{}
		return
	}
	state.Data = rel
	state.Trace = append(state.Trace, fmt.Sprintf("extracted %d rows", rel.RowCount()))
}

func (o *Orchestrator) validateStage(ctx context.Context, state *PipelineState) {
	state.State = StateValidating
	state.Validation = o.validator.Validate(ctx, state.Question, state.SQLQuery, state.Data)
	state.Trace = append(state.Trace, fmt.Sprintf(
		"validation complete: valid=%t, quality=%.0f%%",
		state.Validation.IsValid, state.Validation.QualityScore*100))
}

func (o *Orchestrator) synthesizeStage(ctx context.Context, state *PipelineState) {
	state.State = StateSynthesizing
	if state.Data.IsEmpty() {
		state.FinalAnswer = noDataAnswer
	} else {
		state.FinalAnswer = o.synthesizer.GenerateSummary(ctx, state.Question, state.Data, state.Validation)
	}
	state.Trace = append(state.Trace, "answer generated")
}

// GenerateOverallSummary runs the full pipeline over the canonical summary
// question and returns its answer.
func (o *Orchestrator) GenerateOverallSummary(ctx context.Context) string {
	o.log.Info("generating overall summary")
	return o.Process(ctx, summaryQuestion).Answer
}
