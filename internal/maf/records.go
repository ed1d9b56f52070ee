package maf

import (
	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/vcf"
)

// FieldRow carries all columns of the original MAF line as a []string. It is
// not part of annotate.InputSchema; MAF output uses it to reproduce the row.
// The line number is in vcf.FieldLine, as for VCF input.
const FieldRow = "MAF_ROW"

// RecordReader adapts a Parser to annotate.RecordReader. Records carry the
// original row alongside the variant fields.
type RecordReader struct {
	*vcf.RecordReader
	parser *Parser
}

// NewRecordReader wraps p. Closing p stays with the caller.
func NewRecordReader(p *Parser) *RecordReader {
	return &RecordReader{RecordReader: vcf.NewRecordReader(p), parser: p}
}

// Next returns the next variant as a record, or nil, nil at end of input.
func (r *RecordReader) Next() (annotate.Record, error) {
	rec, err := r.RecordReader.Next()
	if err != nil || rec == nil {
		return nil, err
	}
	rec[FieldRow] = r.parser.Fields()
	return rec, nil
}
