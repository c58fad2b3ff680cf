package dataset

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Schema returns the column names in header order.
func Schema(t *Table) []string {
	return t.Names()
}

// ColumnSummary pairs a numeric column with its statistics.
type ColumnSummary struct {
	Column string
	Stats  Stats
}

// Summary is the describe result over every numeric column, in header order.
// A table without numeric columns yields an empty Summary, which is a valid
// answer and not an error.
type Summary struct {
	Columns []ColumnSummary
}

// Empty reports whether the table had no numeric columns.
func (s Summary) Empty() bool {
	return len(s.Columns) == 0
}

// Map returns the summary keyed by column name.
func (s Summary) Map() map[string]Stats {
	m := make(map[string]Stats, len(s.Columns))
	for _, c := range s.Columns {
		m[c.Column] = c.Stats
	}
	return m
}

// Summarize describes every numeric column of t. Columns are independent, so
// they are computed concurrently.
func Summarize(ctx context.Context, t *Table) (Summary, error) {
	var numeric []*Column
	for _, c := range t.Columns() {
		if c.IsNumeric() {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) == 0 {
		return Summary{}, nil
	}

	out := make([]ColumnSummary, len(numeric))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range numeric {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = ColumnSummary{Column: c.Name(), Stats: Describe(c.Numbers())}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{Columns: out}, nil
}

// ColumnData is a full column as served to clients.
type ColumnData struct {
	Column string     `json:"column"`
	DType  string     `json:"dtype"`
	Type   ColumnType `json:"type"`
	Values []Value    `json:"values"`
}

// ColumnValues extracts a column by name, nulls preserved in place.
func ColumnValues(t *Table, name string) (ColumnData, error) {
	c, ok := t.Column(name)
	if !ok {
		return ColumnData{}, columnNotFound(name)
	}
	return ColumnData{
		Column: c.Name(),
		DType:  c.DType(),
		Type:   c.Type(),
		Values: c.Values(),
	}, nil
}
