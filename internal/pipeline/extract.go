package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/insightctl/retail-insights/internal/dataset"
)

const (
	// fallbackRows is the uniform edge-case policy: unrecognized intents and
	// unresolved entities or metrics yield the first rows of the full dataset
	// in original order.
	fallbackRows = 10

	defaultLimit = 100
)

// Extractor executes SQL or intent-driven extraction strategies against the
// tabular engine. ExecuteSQL is the one pipeline stage permitted to propagate
// a typed failure to the caller; no safe synthetic dataset substitutes for a
// broken query.
type Extractor struct {
	db    *dataset.DB
	data  dataset.Relation
	table string
	log   *slog.Logger
}

// NewExtractor holds the engine handle plus a read-only snapshot of the full
// dataset taken at construction. Intent-driven strategies run against the
// snapshot so repeated calls with the same intent are deterministic.
func NewExtractor(db *dataset.DB, snapshot dataset.Relation, table string, log *slog.Logger) *Extractor {
	return &Extractor{db: db, data: snapshot, table: table, log: log}
}

func (e *Extractor) ExecuteSQL(ctx context.Context, query string) (dataset.Relation, error) {
	e.log.Info("executing sql", "sql", truncate(query, 100))
	rel, err := e.db.Query(ctx, query)
	if err != nil {
		return dataset.Relation{}, fmt.Errorf("sql execution failed: %w", err)
	}
	e.log.Info("query returned rows", "rows", rel.RowCount())
	return rel, nil
}

// ExtractByIntent dispatches on the intent's query type. It never fails:
// anything it cannot serve falls back to the head of the dataset.
func (e *Extractor) ExtractByIntent(intent QueryIntent) dataset.Relation {
	e.log.Info("extracting by intent", "query_type", intent.QueryType)

	switch intent.QueryType {
	case "summary":
		return e.extractSummary(intent)
	case "comparison":
		return e.extractComparison(intent)
	case "trend":
		return e.extractTrend(intent)
	case "filter":
		return e.extractFiltered(intent)
	case "aggregation":
		return e.extractAggregation(intent)
	default:
		return e.fallback()
	}
}

func (e *Extractor) fallback() dataset.Relation {
	return e.data.Head(fallbackRows)
}

func (e *Extractor) extractSummary(intent QueryIntent) dataset.Relation {
	if len(intent.Metrics) == 0 {
		return e.data.Describe()
	}

	out := dataset.Relation{}
	row := []any{}
	for _, metric := range intent.Metrics {
		idx := e.data.ColumnIndex(metric)
		if idx < 0 || e.data.Columns[idx].Type != dataset.Numeric {
			continue
		}
		name := e.data.Columns[idx].Name
		vals := e.data.NumericValues(idx)
		out.Columns = append(out.Columns,
			dataset.Column{Name: name + "_total", Type: dataset.Numeric},
			dataset.Column{Name: name + "_avg", Type: dataset.Numeric},
			dataset.Column{Name: name + "_max", Type: dataset.Numeric},
			dataset.Column{Name: name + "_min", Type: dataset.Numeric},
		)
		row = append(row, dataset.Sum(vals), dataset.Mean(vals), dataset.Max(vals), dataset.Min(vals))
	}
	if len(out.Columns) == 0 {
		return e.fallback()
	}
	out.Rows = [][]any{row}
	return out
}

func (e *Extractor) extractComparison(intent QueryIntent) dataset.Relation {
	if len(intent.Entities) == 0 || len(intent.Metrics) == 0 {
		return e.fallback()
	}

	entityCol := resolveColumn(e.data.Columns, intent.Entities[0])
	metricCol := e.data.ColumnIndex(intent.Metrics[0])
	if entityCol < 0 || metricCol < 0 {
		return e.fallback()
	}

	out := e.groupSum(entityCol, metricCol)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, _ := dataset.ToFloat(out.Rows[i][1])
		b, _ := dataset.ToFloat(out.Rows[j][1])
		return a > b
	})
	return out
}

func (e *Extractor) extractTrend(intent QueryIntent) dataset.Relation {
	dateCol := resolveDateColumn(e.data.Columns)
	if dateCol < 0 || len(intent.Metrics) == 0 {
		return e.fallback()
	}
	metricCol := e.data.ColumnIndex(intent.Metrics[0])
	if metricCol < 0 {
		return e.fallback()
	}

	out := e.groupSum(dateCol, metricCol)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return lessCell(out.Rows[i][0], out.Rows[j][0])
	})
	return out
}

func (e *Extractor) extractFiltered(intent QueryIntent) dataset.Relation {
	out := dataset.Relation{Columns: e.data.Columns, Rows: [][]any{}}

	// Filter columns are matched by name; filters naming absent columns are
	// skipped. Map keys are applied in sorted order for determinism.
	type boundFilter struct {
		col  int
		want any
	}
	keys := make([]string, 0, len(intent.Filters))
	for k := range intent.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var bound []boundFilter
	for _, k := range keys {
		if idx := e.data.ColumnIndex(k); idx >= 0 {
			bound = append(bound, boundFilter{col: idx, want: intent.Filters[k]})
		}
	}

	for _, row := range e.data.Rows {
		match := true
		for _, f := range bound {
			if !cellEquals(row[f.col], f.want) {
				match = false
				break
			}
		}
		if match {
			out.Rows = append(out.Rows, row)
		}
	}

	limit := intent.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return out.Head(limit)
}

func (e *Extractor) extractAggregation(intent QueryIntent) dataset.Relation {
	if len(intent.Entities) == 0 || len(intent.Metrics) == 0 {
		return e.fallback()
	}

	entityCol := resolveColumn(e.data.Columns, intent.Entities[0])
	metricCol := e.data.ColumnIndex(intent.Metrics[0])
	if entityCol < 0 || metricCol < 0 {
		return e.fallback()
	}

	out := e.groupAggregate(entityCol, metricCol, intent.Aggregation)

	if intent.SortBy != "" {
		if sortCol := out.ColumnIndex(intent.SortBy); sortCol >= 0 {
			sort.SliceStable(out.Rows, func(i, j int) bool {
				return lessCell(out.Rows[j][sortCol], out.Rows[i][sortCol])
			})
		}
	}

	limit := intent.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return out.Head(limit)
}

// groupSum groups the snapshot by one column and sums a numeric column,
// preserving first-seen group order.
func (e *Extractor) groupSum(groupCol, metricCol int) dataset.Relation {
	return e.groupAggregate(groupCol, metricCol, "sum")
}

func (e *Extractor) groupAggregate(groupCol, metricCol int, aggregation string) dataset.Relation {
	type group struct {
		key   any
		vals  []float64
		count int
	}
	index := map[string]int{}
	var groups []*group

	for _, row := range e.data.Rows {
		k := dataset.FormatCell(row[groupCol])
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, &group{key: row[groupCol]})
		}
		groups[i].count++
		if v, ok := dataset.ToFloat(row[metricCol]); ok {
			groups[i].vals = append(groups[i].vals, v)
		}
	}

	out := dataset.Relation{
		Columns: []dataset.Column{
			e.data.Columns[groupCol],
			{Name: e.data.Columns[metricCol].Name, Type: dataset.Numeric},
		},
	}
	for _, g := range groups {
		var v float64
		switch aggregation {
		case "avg":
			v = dataset.Mean(g.vals)
		case "max":
			v = dataset.Max(g.vals)
		case "min":
			v = dataset.Min(g.vals)
		case "count":
			v = float64(g.count)
		default: // sum
			v = dataset.Sum(g.vals)
		}
		out.Rows = append(out.Rows, []any{g.key, v})
	}
	return out
}

// resolveColumn maps an entity name to a column with documented precedence:
// case-insensitive exact match first, then the first column whose name
// contains the entity as a case-insensitive substring, else -1 (unresolved).
func resolveColumn(cols []dataset.Column, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	lower := strings.ToLower(name)
	for i, c := range cols {
		if strings.Contains(strings.ToLower(c.Name), lower) {
			return i
		}
	}
	return -1
}

// resolveDateColumn picks the first datetime-typed column, else the first
// column whose name contains "date".
func resolveDateColumn(cols []dataset.Column) int {
	for i, c := range cols {
		if c.Type == dataset.Datetime {
			return i
		}
	}
	for i, c := range cols {
		if strings.Contains(strings.ToLower(c.Name), "date") {
			return i
		}
	}
	return -1
}

func cellEquals(cell, want any) bool {
	if cf, ok := dataset.ToFloat(cell); ok {
		if wf, ok := dataset.ToFloat(want); ok {
			return cf == wf
		}
	}
	return fmt.Sprintf("%v", cell) == fmt.Sprintf("%v", want)
}

func lessCell(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}
	if af, ok := dataset.ToFloat(a); ok {
		if bf, ok := dataset.ToFloat(b); ok {
			return af < bf
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}
