package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIngest(t *testing.T, csv string) *Table {
	t.Helper()
	tbl, err := Ingest(strings.NewReader(csv), IngestOptions{})
	require.NoError(t, err)
	return tbl
}

func TestIngest_InfersColumnTypes(t *testing.T) {
	tbl := mustIngest(t, "id,price,name,score\n1,1.5,alice,\n2,2,bob,7\n3,3.25,carol,NA\n")

	require.Equal(t, 3, tbl.Rows())
	assert.Equal(t, []string{"id", "price", "name", "score"}, tbl.Names())

	tests := []struct {
		column  string
		storage Storage
		typ     ColumnType
	}{
		{"id", StorageInt, TypeNumeric},
		{"price", StorageFloat, TypeNumeric},
		{"name", StorageText, TypeText},
		{"score", StorageInt, TypeNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			c, ok := tbl.Column(tt.column)
			require.True(t, ok)
			assert.Equal(t, tt.storage, c.Storage())
			assert.Equal(t, tt.typ, c.Type())
			assert.Equal(t, 3, c.Len())
		})
	}
}

func TestIngest_IntegerColumnWithNullsStaysInteger(t *testing.T) {
	tbl := mustIngest(t, "a,b\n1,x\n,y\n2,z\nnull,w\n")

	c, _ := tbl.Column("a")
	assert.Equal(t, StorageInt, c.Storage())
	assert.Equal(t, []Value{Int(1), {}, Int(2), {}}, c.Values())
	assert.Equal(t, 2, c.NullCount())
	assert.Equal(t, "float64", c.DType(), "dtype label matches a dataframe")
	assert.Equal(t, []float64{1, 2}, c.Numbers())

	full, _ := mustIngest(t, "a\n1\n2\n").Column("a")
	assert.Equal(t, "int64", full.DType())
}

func TestIngest_NullsPreservedInTextColumns(t *testing.T) {
	tbl := mustIngest(t, "city,n\nOslo,1\n,2\nN/A,3\nRome,4\n")

	c, _ := tbl.Column("city")
	assert.Equal(t, StorageText, c.Storage())
	assert.Equal(t, []Value{String("Oslo"), {}, {}, String("Rome")}, c.Values())
	assert.Equal(t, 2, c.NullCount())
}

func TestIngest_AllNullColumnIsNumeric(t *testing.T) {
	tbl := mustIngest(t, "a,b\n1,\n2,\n")

	c, _ := tbl.Column("b")
	assert.Equal(t, StorageFloat, c.Storage())
	assert.Empty(t, c.Numbers())
}

func TestIngest_HeaderOnly(t *testing.T) {
	tbl := mustIngest(t, "a,b\n")

	assert.Equal(t, 0, tbl.Rows())
	assert.Equal(t, []string{"a", "b"}, tbl.Names())
	c, _ := tbl.Column("a")
	assert.Equal(t, TypeText, c.Type())
}

func TestIngest_DuplicateAndBlankHeaders(t *testing.T) {
	tbl := mustIngest(t, "x,x,,x\n1,2,3,4\n")

	assert.Equal(t, []string{"x", "x.1", "Unnamed: 2", "x.2"}, tbl.Names())
}

func TestIngest_ShortRowsArePadded(t *testing.T) {
	tbl := mustIngest(t, "a,b,c\n1,2,3\n4\n")

	for _, c := range tbl.Columns() {
		assert.Equal(t, tbl.Rows(), c.Len(), "column %s", c.Name())
	}
	c, _ := tbl.Column("c")
	assert.Equal(t, []Value{Int(3), {}}, c.Values())
}

func TestIngest_SkipsBOM(t *testing.T) {
	tbl := mustIngest(t, "\xEF\xBB\xBFid,v\n1,2\n")

	_, ok := tbl.Column("id")
	assert.True(t, ok, "BOM should not be part of the first header")
}

func TestIngest_NumericEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		cell    string
		storage Storage
	}{
		{"signed int", "-42", StorageInt},
		{"padded int", " 7 ", StorageInt},
		{"exponent", "1e3", StorageFloat},
		{"leading dot", ".5", StorageFloat},
		{"infinity", "inf", StorageFloat},
		{"hex stays text", "0x10", StorageText},
		{"separator stays text", "1,000", StorageText},
		{"word", "abc", StorageText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustIngest(t, "v\n\""+tt.cell+"\"\n")
			c, _ := tbl.Column("v")
			assert.Equal(t, tt.storage, c.Storage())
		})
	}
}

func TestIngest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRows  int
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "empty input",
			input:    "",
			wantKind: KindBadInput,
			wantMsg:  "No columns to parse from file",
		},
		{
			name:     "too many fields",
			input:    "a,b\n1,2\n1,2,3\n",
			wantKind: KindBadInput,
			wantMsg:  "Expected 2 fields in line 3, saw 3",
		},
		{
			name:     "bare quote",
			input:    "a,b\n1,x\"y\n",
			wantKind: KindBadInput,
			wantMsg:  "Failed to read CSV",
		},
		{
			name:     "invalid utf8",
			input:    "a\n\xff\xfe\n",
			wantKind: KindBadInput,
			wantMsg:  "invalid UTF-8",
		},
		{
			name:     "over guardrail",
			input:    "a\n1\n2\n3\n",
			maxRows:  2,
			wantKind: KindPayloadTooLarge,
			wantMsg:  "rows > 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Ingest(strings.NewReader(tt.input), IngestOptions{MaxRows: tt.maxRows})
			require.Error(t, err)
			assert.Nil(t, tbl)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestIngest_AtGuardrailSucceeds(t *testing.T) {
	tbl, err := Ingest(strings.NewReader("a\n1\n2\n"), IngestOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := Errorf(KindNotFound, "Column 'x' not found.")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrBadInput))
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
