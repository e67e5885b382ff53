package dataset

import (
	"math"
	"sort"
)

// Describe computes descriptive statistics (count, mean, std, min, quartiles,
// max) over every numeric column. The result has one text column naming the
// statistic plus one numeric column per input numeric column. Columns with no
// numeric values report zeros.
func (r Relation) Describe() Relation {
	numeric := r.NumericColumns()

	out := Relation{Columns: []Column{{Name: "statistic", Type: Text}}}
	for _, idx := range numeric {
		out.Columns = append(out.Columns, Column{Name: r.Columns[idx].Name, Type: Numeric})
	}

	stats := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	cells := make(map[string][]any, len(stats))
	for _, s := range stats {
		cells[s] = []any{s}
	}

	for _, idx := range numeric {
		vals := r.NumericValues(idx)
		cells["count"] = append(cells["count"], float64(len(vals)))
		cells["mean"] = append(cells["mean"], Mean(vals))
		cells["std"] = append(cells["std"], Std(vals))
		cells["min"] = append(cells["min"], Min(vals))
		cells["25%"] = append(cells["25%"], Quantile(vals, 0.25))
		cells["50%"] = append(cells["50%"], Quantile(vals, 0.50))
		cells["75%"] = append(cells["75%"], Quantile(vals, 0.75))
		cells["max"] = append(cells["max"], Max(vals))
	}

	for _, s := range stats {
		out.Rows = append(out.Rows, cells[s])
	}
	return out
}

func Sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return Sum(vals) / float64(len(vals))
}

// Std is the sample standard deviation (n-1 denominator).
func Std(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func Min(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func Max(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Quantile computes the q-th quantile with linear interpolation between
// closest ranks.
func Quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
