package vcf

import "github.com/inodb/vibe-annot/internal/annotate"

// VariantParser is the interface for parsers that read variants.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// Schema is the schema of records produced by RecordReader.
var Schema = annotate.InputSchema

// RecordReader adapts a VariantParser to annotate.RecordReader.
type RecordReader struct {
	parser VariantParser
}

// NewRecordReader wraps p. Closing p stays with the caller.
func NewRecordReader(p VariantParser) *RecordReader {
	return &RecordReader{parser: p}
}

// Next returns the next variant as a record, or nil, nil at end of input.
// The record carries the input line number in FieldLine.
func (r *RecordReader) Next() (annotate.Record, error) {
	v, err := r.parser.Next()
	if err != nil || v == nil {
		return nil, err
	}
	rec := v.Record()
	rec[FieldLine] = int64(r.parser.LineNumber())
	return rec, nil
}
