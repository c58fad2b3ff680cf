package dataset

// DefaultFilterLimit caps the records returned by Filter.
const DefaultFilterLimit = 100

// FilterResult is the outcome of an equality filter.
// RowsTotal counts every match; Records holds at most the requested limit.
type FilterResult struct {
	Column       string
	Value        Value
	RowsReturned int
	RowsTotal    int
	Records      []Record
}

// Filter selects the rows whose cell in column equals the coerced raw operand.
// Matching is exact on type and value (see Coerce and Value.Equal). Records are
// returned in row order, at most limit of them; limit <= 0 means
// DefaultFilterLimit.
func Filter(t *Table, column, raw string, limit int) (FilterResult, error) {
	c, ok := t.Column(column)
	if !ok {
		return FilterResult{}, columnNotFound(column)
	}
	if limit <= 0 {
		limit = DefaultFilterLimit
	}

	want := Coerce(raw)
	res := FilterResult{Column: column, Value: want, Records: []Record{}}
	if !storageAccepts(c.Storage(), want.Kind()) {
		return res, nil
	}

	for i := 0; i < c.Len(); i++ {
		if !c.Cell(i).Equal(want) {
			continue
		}
		res.RowsTotal++
		if len(res.Records) < limit {
			res.Records = append(res.Records, t.Record(i))
		}
	}
	res.RowsReturned = len(res.Records)
	return res, nil
}

// storageAccepts short-circuits scans that cannot match any cell.
func storageAccepts(s Storage, k ValueKind) bool {
	switch s {
	case StorageInt:
		return k == IntVal
	case StorageFloat:
		return k == FloatVal
	default:
		return k == StringVal
	}
}
