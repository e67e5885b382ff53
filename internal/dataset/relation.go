package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ColumnType is the semantic type of a relation column.
type ColumnType string

const (
	Numeric  ColumnType = "numeric"
	Text     ColumnType = "text"
	Datetime ColumnType = "datetime"
)

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Relation is an in-memory tabular result set: an ordered set of typed
// columns and an ordered sequence of rows. A Relation is always well-formed,
// possibly with zero rows. Consumers treat it as read-only.
type Relation struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (r Relation) RowCount() int    { return len(r.Rows) }
func (r Relation) ColumnCount() int { return len(r.Columns) }
func (r Relation) IsEmpty() bool    { return len(r.Rows) == 0 }

func (r Relation) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, matched
// case-insensitively, or -1 when absent.
func (r Relation) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Head returns a relation holding the first n rows in original order.
func (r Relation) Head(n int) Relation {
	if n > len(r.Rows) {
		n = len(r.Rows)
	}
	if n < 0 {
		n = 0
	}
	return Relation{Columns: r.Columns, Rows: r.Rows[:n]}
}

// NumericColumns returns the indexes of all numeric columns in order.
func (r Relation) NumericColumns() []int {
	var idx []int
	for i, c := range r.Columns {
		if c.Type == Numeric {
			idx = append(idx, i)
		}
	}
	return idx
}

// NumericValues extracts the non-null numeric values of the column at col.
func (r Relation) NumericValues(col int) []float64 {
	vals := make([]float64, 0, len(r.Rows))
	for _, row := range r.Rows {
		if v, ok := ToFloat(row[col]); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

// ToFloat coerces a cell value to float64. Returns false for nulls and
// non-numeric values.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FormatCell renders a single cell for prompt digests and fallback answers.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.2f", c)
	case float32:
		return fmt.Sprintf("%.2f", c)
	case time.Time:
		return c.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", c)
	}
}

// Render draws up to maxRows rows as a fixed-width text table.
func (r Relation) Render(maxRows int) string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(r.ColumnNames())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for i, row := range r.Rows {
		if maxRows >= 0 && i >= maxRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
	return sb.String()
}
