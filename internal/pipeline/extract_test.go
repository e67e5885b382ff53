package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightctl/retail-insights/internal/dataset"
)

func TestExtractComparisonGroupsAndSortsDescending(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "comparison",
		Entities:  []string{"Region"},
		Metrics:   []string{"Sales"},
	})

	require.Equal(t, 2, out.RowCount(), "one row per distinct region")
	assert.Equal(t, []string{"Region", "Sales"}, out.ColumnNames())

	// South: 800 + 2100 + 300 = 3200, North: 1200 + 450 + 950 = 2600
	assert.Equal(t, "South", out.Rows[0][0])
	assert.InDelta(t, 3200.0, out.Rows[0][1], 1e-9)
	assert.Equal(t, "North", out.Rows[1][0])
	assert.InDelta(t, 2600.0, out.Rows[1][1], 1e-9)
}

func TestExtractComparisonUnresolvedEntityFallsBack(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "comparison",
		Entities:  []string{"Warehouse"},
		Metrics:   []string{"Sales"},
	})

	assert.Equal(t, salesRelation().Head(10), out)
}

func TestResolveColumnPrecedence(t *testing.T) {
	cols := []dataset.Column{
		{Name: "SalesRegion", Type: dataset.Text},
		{Name: "Region", Type: dataset.Text},
	}

	// Exact case-insensitive match wins over an earlier substring match.
	assert.Equal(t, 1, resolveColumn(cols, "region"))
	// Substring resolution takes the first matching column in order.
	assert.Equal(t, 0, resolveColumn(cols, "Reg"))
	assert.Equal(t, -1, resolveColumn(cols, "Store"))
	assert.Equal(t, -1, resolveColumn(cols, ""))
}

func TestExtractFilterAppliesEqualityAndLimit(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "filter",
		Filters:   map[string]any{"Category": "Electronics"},
		Limit:     5,
	})

	assert.LessOrEqual(t, out.RowCount(), 5)
	require.Equal(t, 4, out.RowCount())
	cat := out.ColumnIndex("Category")
	for _, row := range out.Rows {
		assert.Equal(t, "Electronics", row[cat])
	}
}

func TestExtractFilterSkipsUnknownColumnsAndDefaultsLimit(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "filter",
		Filters:   map[string]any{"Nonexistent": "x"},
	})

	assert.Equal(t, salesRelation().RowCount(), out.RowCount())
}

func TestExtractUnknownTypeReturnsHeadInOriginalOrder(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{QueryType: "pivot"})

	fixture := salesRelation()
	require.Equal(t, fixture.RowCount(), out.RowCount(), "fewer than ten rows means the whole dataset")
	for i, row := range out.Rows {
		assert.Equal(t, fixture.Rows[i], row)
	}
}

func TestExtractByIntentIsDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	intent := QueryIntent{
		QueryType: "comparison",
		Entities:  []string{"Region"},
		Metrics:   []string{"Sales"},
	}

	first := e.ExtractByIntent(intent)
	second := e.ExtractByIntent(intent)
	assert.True(t, reflect.DeepEqual(first, second))
}

func TestExtractTrendGroupsByDateAscending(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "trend",
		Metrics:   []string{"Sales"},
	})

	require.Equal(t, 3, out.RowCount())
	assert.Equal(t, date("2024-01-01"), out.Rows[0][0])
	assert.InDelta(t, 1750.0, out.Rows[0][1], 1e-9) // 800 + 950
	assert.Equal(t, date("2024-01-02"), out.Rows[1][0])
	assert.InDelta(t, 2550.0, out.Rows[1][1], 1e-9) // 450 + 2100
	assert.Equal(t, date("2024-01-03"), out.Rows[2][0])
	assert.InDelta(t, 1500.0, out.Rows[2][1], 1e-9) // 1200 + 300
}

func TestExtractSummaryWithoutMetricsDescribes(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{QueryType: "summary"})

	require.Equal(t, []string{"statistic", "Sales", "Quantity"}, out.ColumnNames())
	require.Equal(t, 8, out.RowCount())
	assert.Equal(t, "count", out.Rows[0][0])
	assert.InDelta(t, 6.0, out.Rows[0][1], 1e-9)
}

func TestExtractSummaryWithMetrics(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "summary",
		Metrics:   []string{"Sales"},
	})

	require.Equal(t, []string{"Sales_total", "Sales_avg", "Sales_max", "Sales_min"}, out.ColumnNames())
	require.Equal(t, 1, out.RowCount())
	assert.InDelta(t, 5800.0, out.Rows[0][0], 1e-9)
	assert.InDelta(t, 5800.0/6, out.Rows[0][1], 1e-9)
	assert.InDelta(t, 2100.0, out.Rows[0][2], 1e-9)
	assert.InDelta(t, 300.0, out.Rows[0][3], 1e-9)
}

func TestExtractSummaryWithUnresolvedMetricFallsBack(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType: "summary",
		Metrics:   []string{"Margin"},
	})

	assert.Equal(t, salesRelation().Head(10), out)
}

func TestExtractAggregationAvgWithSortAndLimit(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType:   "aggregation",
		Entities:    []string{"Category"},
		Metrics:     []string{"Sales"},
		Aggregation: "avg",
		SortBy:      "Sales",
		Limit:       1,
	})

	require.Equal(t, 1, out.RowCount())
	// Electronics avg = (1200+2100+300+950)/4 = 1137.5 > Furniture avg 625
	assert.Equal(t, "Electronics", out.Rows[0][0])
	assert.InDelta(t, 1137.5, out.Rows[0][1], 1e-9)
}

func TestExtractAggregationCount(t *testing.T) {
	e := newTestExtractor(t)

	out := e.ExtractByIntent(QueryIntent{
		QueryType:   "aggregation",
		Entities:    []string{"Region"},
		Metrics:     []string{"Sales"},
		Aggregation: "count",
	})

	require.Equal(t, 2, out.RowCount())
	for _, row := range out.Rows {
		assert.InDelta(t, 3.0, row[1], 1e-9)
	}
}

func TestExecuteSQLPropagatesEngineFailure(t *testing.T) {
	log := testLogger(t)
	db, err := dataset.Open(log)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Register(ctx, "sales_data", salesRelation()))

	e := NewExtractor(db, salesRelation(), "sales_data", log)

	out, err := e.ExecuteSQL(ctx, "SELECT Region, sum(Sales) AS Sales FROM sales_data GROUP BY Region ORDER BY 2 DESC")
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())

	_, err = e.ExecuteSQL(ctx, "SELECT * FROM missing_table")
	assert.Error(t, err)
}
