// Package output provides annotation output formatters.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-annot/internal/annotate"
)

// Fixed leading columns, taken from the input record.
var inputColumns = []string{
	annotate.FieldChrom,
	annotate.FieldPos,
	annotate.FieldRef,
	annotate.FieldAlt,
}

// SetSeparator joins the values of set-valued fields.
const SetSeparator = ";"

// TabWriter writes annotation results in tab-delimited format, one row per
// result. It implements annotate.ResultWriter.
type TabWriter struct {
	w      *bufio.Writer
	fields []annotate.Field
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line: the input columns, the annotator
// name, then the given output fields in order.
func (tw *TabWriter) WriteHeader(fields []annotate.Field) error {
	tw.fields = fields

	cols := make([]string, 0, len(inputColumns)+1+len(fields))
	cols = append(cols, "#"+inputColumns[0])
	cols = append(cols, inputColumns[1:]...)
	cols = append(cols, "ANNOTATOR")
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	_, err := tw.w.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

// Write writes a single result. Input columns come from the input record;
// fields absent from the result are written as "-".
func (tw *TabWriter) Write(in annotate.Record, res annotate.Result) error {
	values := make([]string, 0, len(inputColumns)+1+len(tw.fields))
	for _, col := range inputColumns {
		values = append(values, FormatValue(in[col]))
	}
	values = append(values, res.Source)
	for _, f := range tw.fields {
		values = append(values, FormatValue(res.Record[f.Name]))
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// FormatValue renders a record value for a tab-delimited cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return escape(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case []string:
		if len(x) == 0 {
			return "-"
		}
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = escape(s)
		}
		return strings.Join(parts, SetSeparator)
	case []int64:
		if len(x) == 0 {
			return "-"
		}
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, SetSeparator)
	}
	return escape(fmt.Sprint(v))
}

// escape keeps a value on one cell.
func escape(s string) string {
	if !strings.ContainsAny(s, "\t\n\r") {
		return s
	}
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
