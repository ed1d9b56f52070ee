package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/maf"
	"github.com/inodb/vibe-annot/internal/vcf"
)

// MAFWriter writes annotated MAF rows, preserving all original columns and
// appending one column per output field. Like VCFWriter it merges the
// results of all annotators into a single row per input line. Input records
// must come from maf.RecordReader.
type MAFWriter struct {
	w          *bufio.Writer
	headerLine string
	fields     []annotate.Field

	// Buffered state for the current input line.
	current     annotate.Record
	currentLine int64
	values      map[string]string
}

// NewMAFWriter creates a new MAF writer for the given input header line.
func NewMAFWriter(w io.Writer, headerLine string) *MAFWriter {
	return &MAFWriter{
		w:          bufio.NewWriter(w),
		headerLine: headerLine,
	}
}

// WriteHeader writes the original MAF header line plus one column per field.
func (m *MAFWriter) WriteHeader(fields []annotate.Field) error {
	m.fields = fields

	var b strings.Builder
	b.WriteString(m.headerLine)
	for _, f := range fields {
		b.WriteByte('\t')
		b.WriteString(f.Name)
	}
	b.WriteByte('\n')
	_, err := m.w.WriteString(b.String())
	return err
}

// Write buffers a result for the given input record. When a new input line
// is encountered, the previous row is flushed.
func (m *MAFWriter) Write(in annotate.Record, res annotate.Result) error {
	line, _ := in.Int64(vcf.FieldLine)
	if m.current != nil && line != m.currentLine {
		if err := m.flushRow(); err != nil {
			return err
		}
	}
	if m.current == nil {
		m.current = in
		m.currentLine = line
		m.values = make(map[string]string)
	}

	for _, f := range m.fields {
		v, ok := res.Record[f.Name]
		if !ok {
			continue
		}
		if _, seen := m.values[f.Name]; seen {
			continue
		}
		if s := FormatValue(v); s != "-" {
			m.values[f.Name] = s
		}
	}
	return nil
}

// Flush writes any buffered row and flushes the underlying writer.
func (m *MAFWriter) Flush() error {
	if m.current != nil {
		if err := m.flushRow(); err != nil {
			return err
		}
	}
	return m.w.Flush()
}

// flushRow writes the buffered row. Fields without a value are left empty.
func (m *MAFWriter) flushRow() error {
	orig, _ := m.current[maf.FieldRow].([]string)
	row := make([]string, len(orig), len(orig)+len(m.fields))
	copy(row, orig)
	for _, f := range m.fields {
		row = append(row, m.values[f.Name])
	}

	_, err := m.w.WriteString(strings.Join(row, "\t") + "\n")

	m.current = nil
	m.currentLine = 0
	m.values = nil
	return err
}
