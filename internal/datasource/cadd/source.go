package cadd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/annotate"
)

// Output field names.
const (
	FieldRaw    = "CADD"
	FieldScaled = "CADD_SCALED"
)

var outputFields = []annotate.Field{
	{Name: FieldRaw, Type: annotate.FieldTypeString, Description: "Raw CADD scores of the matched alternate alleles, comma-separated"},
	{Name: FieldScaled, Type: annotate.FieldTypeString, Description: "PHRED-scaled CADD scores of the matched alternate alleles, comma-separated"},
}

// Source annotates variant records with CADD scores.
type Source struct {
	lookup ScoreLookup
	logger *zap.Logger
}

// NewSource creates an annotator backed by the given lookup, usually a *Store.
func NewSource(lookup ScoreLookup) *Source {
	return &Source{lookup: lookup, logger: zap.NewNop()}
}

// SetLogger sets the logger for the source.
func (s *Source) SetLogger(l *zap.Logger) {
	s.logger = l
}

func (s *Source) Name() string { return "cadd" }

// CanAnnotate requires chromosome, position, reference and alternate alleles.
func (s *Source) CanAnnotate(schema annotate.Schema) (bool, string) {
	return annotate.CheckRequirements(schema,
		annotate.RequireChrom, annotate.RequirePos, annotate.RequireRef, annotate.RequireAlt)
}

func (s *Source) OutputFields() []annotate.Field {
	return outputFields
}

// Annotate returns a copy of rec. The score fields are set only when at
// least one alternate allele has a score.
func (s *Source) Annotate(rec annotate.Record) ([]annotate.Record, error) {
	chrom, ok := rec.String(annotate.FieldChrom)
	if !ok {
		return nil, fmt.Errorf("cadd: record has no %s", annotate.FieldChrom)
	}
	pos, ok := rec.Int64(annotate.FieldPos)
	if !ok {
		return nil, fmt.Errorf("cadd: record has no %s", annotate.FieldPos)
	}
	ref, _ := rec.String(annotate.FieldRef)
	alts, _ := rec.String(annotate.FieldAlt)

	raw, scaled, matched, err := Match(s.lookup, chrom, pos, ref, alts)
	if err != nil {
		return nil, err
	}

	out := rec.Clone()
	if matched {
		out[FieldRaw] = raw
		out[FieldScaled] = scaled
	} else {
		s.logger.Debug("no cadd score",
			zap.String("chrom", chrom),
			zap.Int64("pos", pos),
			zap.String("ref", ref),
			zap.String("alt", alts))
	}
	return []annotate.Record{out}, nil
}
