// Package annotate defines the annotator contract and the engine that runs
// registered annotators over a stream of variant records.
package annotate

import (
	"maps"
	"strconv"
)

// Input field names.
const (
	FieldChrom = "CHROM"
	FieldPos   = "POS"
	FieldRef   = "REF"
	FieldAlt   = "ALT"
)

// InputSchema is the schema of records built from VCF variants.
var InputSchema = Schema{
	{Name: FieldChrom, Type: FieldTypeString, Description: "Chromosome"},
	{Name: FieldPos, Type: FieldTypeLong, Description: "1-based position"},
	{Name: FieldRef, Type: FieldTypeText, Description: "Reference allele"},
	{Name: FieldAlt, Type: FieldTypeText, Description: "Comma-separated alternate alleles"},
}

// Record is a generic keyed record. Values are scalars (string, int64) or
// deduplicated sets ([]string, []int64).
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// String returns the string value of a field.
func (r Record) String(name string) (string, bool) {
	v, ok := r[name].(string)
	return v, ok
}

// Int64 returns the integer value of a field. Integer-typed values of any
// width are accepted, as are decimal strings.
func (r Record) Int64(name string) (int64, bool) {
	switch v := r[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
