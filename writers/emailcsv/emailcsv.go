package emailcsv

import "encoding/csv"

// Row is anything that can render itself as a CSV record with headers.
type Row interface {
	CsvHeaders() []string
	CsvRow() []string
}

// Writer emits rows to a CSV stream, writing the header line exactly once
// before the first row.
type Writer struct {
	cw          *csv.Writer
	wroteHeader bool
}

func New(cw *csv.Writer) *Writer {
	return &Writer{cw: cw}
}

func (w *Writer) Write(row Row) error {
	if !w.wroteHeader {
		if err := w.cw.Write(row.CsvHeaders()); err != nil {
			return err
		}

		w.wroteHeader = true
	}

	return w.cw.Write(row.CsvRow())
}

// Flush drains the underlying writer and surfaces any deferred write error.
func (w *Writer) Flush() error {
	w.cw.Flush()

	return w.cw.Error()
}
