package emailcsv

import (
	"bytes"
	"encoding/csv"
	"testing"
)

type testRow struct {
	values []string
}

func (r *testRow) CsvHeaders() []string {
	return []string{"id", "value"}
}

func (r *testRow) CsvRow() []string {
	return r.values
}

func TestWriterHeaderOnce(t *testing.T) {
	var buf bytes.Buffer

	w := New(csv.NewWriter(&buf))

	rows := []*testRow{
		{values: []string{"1", "first"}},
		{values: []string{"2", "second"}},
	}

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "id,value\n1,first\n2,second\n"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWriterQuoting(t *testing.T) {
	var buf bytes.Buffer

	w := New(csv.NewWriter(&buf))

	if err := w.Write(&testRow{values: []string{"1", `needs "quotes", commas`}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "id,value\n1,\"needs \"\"quotes\"\", commas\"\n"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
