// Package dataset holds the in-memory table built from an uploaded CSV and the
// read-only operations answered against it.
//
// A Table is immutable once Ingest returns it. Every operation in this package
// is a pure function of its inputs, so a Table can be shared freely between
// goroutines without locking.
package dataset

import "math"

// ColumnType is the coarse classification reported to clients.
type ColumnType string

const (
	TypeNumeric ColumnType = "numeric"
	TypeText    ColumnType = "text"
)

// Storage is the tagged variant a column's values are held in, decided once at
// ingestion time.
type Storage uint8

const (
	StorageInt Storage = iota
	StorageFloat
	StorageText
)

// DType returns the conventional dtype label for the storage variant.
func (s Storage) DType() string {
	switch s {
	case StorageInt:
		return "int64"
	case StorageFloat:
		return "float64"
	default:
		return "object"
	}
}

// Column is one named, typed sequence of cells.
// Exactly one of ints, floats or strs is populated, matching storage.
// valid[i] is false for null cells, whatever the storage.
type Column struct {
	name    string
	storage Storage
	ints    []int64
	floats  []float64
	strs    []string
	valid   []bool
}

// Name returns the header name, made unique at ingestion.
func (c *Column) Name() string { return c.name }

// Storage returns the variant the cells are held in.
func (c *Column) Storage() Storage { return c.storage }

// DType returns the dtype label reported to clients. An integer column with
// nulls reports float64, the label a dataframe gives it.
func (c *Column) DType() string {
	if c.storage == StorageInt && c.NullCount() > 0 {
		return StorageFloat.DType()
	}
	return c.storage.DType()
}

// Type reports whether the column is numeric or text.
func (c *Column) Type() ColumnType {
	if c.storage == StorageText {
		return TypeText
	}
	return TypeNumeric
}

// IsNumeric reports whether the column holds int64 or float64 cells.
func (c *Column) IsNumeric() bool { return c.storage != StorageText }

// Len returns the number of cells, nulls included.
func (c *Column) Len() int { return len(c.valid) }

// Cell returns the value at row i.
func (c *Column) Cell(i int) Value {
	if !c.valid[i] {
		return Value{}
	}
	switch c.storage {
	case StorageInt:
		return Int(c.ints[i])
	case StorageFloat:
		return Float(c.floats[i])
	default:
		return String(c.strs[i])
	}
}

// Values returns every cell in row order, nulls included.
func (c *Column) Values() []Value {
	out := make([]Value, c.Len())
	for i := range out {
		out[i] = c.Cell(i)
	}
	return out
}

// Numbers returns the non-null cells of a numeric column as float64, in row
// order. NaN never appears because NA tokens are parsed as nulls. It returns
// nil for text columns.
func (c *Column) Numbers() []float64 {
	if !c.IsNumeric() {
		return nil
	}
	out := make([]float64, 0, c.Len())
	for i, ok := range c.valid {
		if !ok {
			continue
		}
		if c.storage == StorageInt {
			out = append(out, float64(c.ints[i]))
			continue
		}
		if math.IsNaN(c.floats[i]) {
			continue
		}
		out = append(out, c.floats[i])
	}
	return out
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns with unique names.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// newTable assembles a Table. Callers guarantee unique names and equal lengths.
func newTable(columns []*Column, rows int) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.name] = i
	}
	return &Table{columns: columns, index: index, rows: rows}
}

// Rows returns the shared column length.
func (t *Table) Rows() int { return t.rows }

// Columns returns the columns in header order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in header order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Record returns row i as an ordered column-to-value mapping.
func (t *Table) Record(i int) Record {
	fields := make([]Field, len(t.columns))
	for j, c := range t.columns {
		fields[j] = Field{Name: c.name, Value: c.Cell(i)}
	}
	return Record{Fields: fields}
}
