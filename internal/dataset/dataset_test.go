package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "id,email,country\n1,a@b.com,IN\n2,,NA\n3,c@d.org\n"

	tbl, err := ReadCSV(strings.NewReader(input), ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "email", "country"}, tbl.Columns())
	assert.Equal(t, 3, tbl.Len())

	email, ok := tbl.Column("email")
	require.True(t, ok)
	assert.Equal(t, []any{"a@b.com", nil, "c@d.org"}, email)

	// "NA" is a missing token by default; short rows are padded.
	country, _ := tbl.Column("country")
	assert.Equal(t, []any{"IN", nil, nil}, country)
}

func TestReadCSV_CustomNAValues(t *testing.T) {
	input := "code\nNA\n\n-\n"
	tbl, err := ReadCSV(strings.NewReader(input), ReadOptions{NAValues: []string{"-"}})
	require.NoError(t, err)

	col, _ := tbl.Column("code")
	// blank lines are skipped by encoding/csv
	assert.Equal(t, []any{"NA", nil}, col)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "duplicate header", input: "a,a\n1,2\n", want: "duplicate column"},
		{name: "too many fields", input: "a\n1,2\n", want: "has 2 fields"},
		{name: "bad quoting", input: "a\n\"x\n", want: "failed to read CSV record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), ReadOptions{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadCSV_Empty(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(""), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.Columns())
}

func TestTable_DropMissing(t *testing.T) {
	tbl, err := FromRows([]string{"id", "note"}, [][]any{
		{int64(1), "x"},
		{nil, "y"},
		{int64(3), nil},
	})
	require.NoError(t, err)

	clean := tbl.DropMissing([]string{"id", "absent"})
	assert.Equal(t, 2, clean.Len())
	ids, _ := clean.Column("id")
	assert.Equal(t, []any{int64(1), int64(3)}, ids)

	// The source table is untouched.
	assert.Equal(t, 3, tbl.Len())
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl, err := FromRows([]string{"a"}, [][]any{{"1"}, {"2"}})
	require.NoError(t, err)

	clone := tbl.Clone()
	clone.SetColumn("a", []any{"x", "y"})
	clone.SetColumn("b", []any{nil, nil})

	a, _ := tbl.Column("a")
	assert.Equal(t, []any{"1", "2"}, a)
	assert.False(t, tbl.HasColumn("b"))
	assert.Equal(t, []string{"a", "b"}, clone.Columns())
}

func TestSetColumn_LengthMismatchPanics(t *testing.T) {
	tbl := New(2)
	assert.Panics(t, func() { tbl.SetColumn("a", []any{1}) })
}

func TestRenderAndJSONValue(t *testing.T) {
	date := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	dateMeta := ColumnMeta{Type: core.TypeDate, Format: "%d/%m/%Y"}

	assert.Equal(t, "", Render(nil, ColumnMeta{}))
	assert.Equal(t, "42", Render(int64(42), ColumnMeta{}))
	assert.Equal(t, "10.5", Render(10.5, ColumnMeta{}))
	assert.Equal(t, "31/01/2024", Render(date, dateMeta))
	assert.Equal(t, "2024-01-31", Render(date, ColumnMeta{Type: core.TypeDate}))

	assert.Nil(t, JSONValue(math.NaN(), ColumnMeta{}))
	assert.Nil(t, JSONValue(math.Inf(1), ColumnMeta{}))
	assert.Equal(t, "31/01/2024", JSONValue(date, dateMeta))
	assert.Equal(t, int64(7), JSONValue(int64(7), ColumnMeta{}))
	assert.True(t, IsMissing(math.NaN()))
	assert.False(t, IsMissing(""))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tbl := New(2)
	tbl.SetTypedColumn("id", []any{int64(1), nil}, ColumnMeta{Type: core.TypeInt})
	tbl.SetTypedColumn("day", []any{time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), nil},
		ColumnMeta{Type: core.TypeDate, Format: core.DefaultDateFormat})
	tbl.SetColumn("raw", []any{"a,b", "c"})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "id,day,raw\n1,2024-02-03,\"a,b\"\n,,c\n", buf.String())

	path := filepath.Join(t.TempDir(), "out", "clean.csv")
	require.NoError(t, WriteCSVFile(path, tbl))

	back, err := ReadCSVFile(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{"1", nil}, mustColumn(t, back, "id"))
	assert.Equal(t, []any{"a,b", "c"}, mustColumn(t, back, "raw"))
}

func mustColumn(t *testing.T, tbl *Table, name string) []any {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %q", name)
	return col
}
