// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-annot/internal/annotate"
)

// Variant represents a single VCF data line.
type Variant struct {
	Chrom  string         // Chromosome name (e.g., "12", "chr12")
	Pos    int64          // 1-based genomic position
	ID     string         // Variant identifier (e.g., rs ID)
	Ref    string         // Reference allele
	Alt    string         // Alternate alleles, comma-separated (e.g., "T,A")
	Qual   float64        // Quality score
	Filter string         // Filter status (PASS or filter name)
	Info   map[string]any // INFO field key-value pairs

	// SampleColumns is the FORMAT column and all sample columns as written,
	// tab-separated. Empty for sites-only VCFs.
	SampleColumns string

	rawInfo string // INFO column as written
}

// Record fields that carry the remaining VCF columns. They are not part of
// Schema; VCF output uses them to reproduce the input line.
const (
	FieldID     = "ID"
	FieldQual   = "QUAL"
	FieldFilter = "FILTER"
	FieldInfo   = "INFO"
	// FieldSamples holds Variant.SampleColumns.
	FieldSamples = "SAMPLES"
	// FieldLine is the int64 input line number. Writers that merge the
	// results of several annotators group on it.
	FieldLine = "LINE"
)

// Record converts the variant to an annotation input record matching
// annotate.InputSchema. The chromosome is kept as written in the file.
func (v *Variant) Record() annotate.Record {
	return annotate.Record{
		annotate.FieldChrom: v.Chrom,
		annotate.FieldPos:   v.Pos,
		annotate.FieldRef:   v.Ref,
		annotate.FieldAlt:   v.Alt,
		FieldID:             v.ID,
		FieldQual:           v.QualString(),
		FieldFilter:         v.Filter,
		FieldInfo:           v.InfoString(),
		FieldSamples:        v.SampleColumns,
	}
}

// QualString formats QUAL for output, "." when missing.
func (v *Variant) QualString() string {
	if v.Qual == 0 {
		return "."
	}
	return strconv.FormatFloat(v.Qual, 'f', -1, 64)
}

// InfoString returns the INFO column as read, "." when empty.
func (v *Variant) InfoString() string {
	if v.rawInfo == "" {
		return "."
	}
	return v.rawInfo
}

// SplitAlleles splits a comma-separated alternate allele list.
// An empty list yields a single empty allele.
func SplitAlleles(alt string) []string {
	return strings.Split(alt, ",")
}
