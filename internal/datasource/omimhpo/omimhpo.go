// Package omimhpo annotates variant loci with the OMIM disorders and HPO
// phenotypes of the gene they fall in.
package omimhpo

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/datasource/hpo"
	"github.com/inodb/vibe-annot/internal/datasource/omim"
	"github.com/inodb/vibe-annot/internal/genelocation"
)

// Output field names.
const (
	FieldOMIMDisorders     = "OMIM_Disorders"
	FieldOMIMEntry         = "OMIM_Entry"
	FieldOMIMType          = "OMIM_Type"
	FieldOMIMCausalID      = "OMIM_Causal_ID"
	FieldOMIMCytoLocation  = "OMIM_Cytogenic_Location"
	FieldOMIMHGNCIDs       = "OMIM_HGNC_IDs"
	FieldHPOIDs            = "HPO_IDs"
	FieldHPODescriptions   = "HPO_Descriptions"
	FieldHPOGeneName       = "HPO_Gene_Name"
	FieldHPOEntrezID       = "HPO_Entrez_ID"
	FieldHPODiseaseDB      = "HPO_Disease_Database"
	FieldHPODiseaseDBEntry = "HPO_Disease_Database_Entry"
)

var outputFields = []annotate.Field{
	{Name: FieldOMIMDisorders, Type: annotate.FieldTypeStringSet, Description: "OMIM disorder names"},
	{Name: FieldOMIMEntry, Type: annotate.FieldTypeLongSet, Description: "OMIM phenotype entries"},
	{Name: FieldOMIMType, Type: annotate.FieldTypeLongSet, Description: "OMIM phenotype mapping keys"},
	{Name: FieldOMIMCausalID, Type: annotate.FieldTypeLongSet, Description: "OMIM entries of the causal genes"},
	{Name: FieldOMIMCytoLocation, Type: annotate.FieldTypeStringSet, Description: "Cytogenetic locations"},
	{Name: FieldOMIMHGNCIDs, Type: annotate.FieldTypeStringSet, Description: "Gene symbols listed by OMIM"},
	{Name: FieldHPOIDs, Type: annotate.FieldTypeStringSet, Description: "HPO term ids"},
	{Name: FieldHPODescriptions, Type: annotate.FieldTypeStringSet, Description: "HPO term names"},
	{Name: FieldHPOGeneName, Type: annotate.FieldTypeStringSet, Description: "HPO gene symbols"},
	{Name: FieldHPOEntrezID, Type: annotate.FieldTypeLongSet, Description: "Entrez gene ids"},
	{Name: FieldHPODiseaseDB, Type: annotate.FieldTypeStringSet, Description: "Disease databases (OMIM, ORPHA, DECIPHER)"},
	{Name: FieldHPODiseaseDBEntry, Type: annotate.FieldTypeLongSet, Description: "Disease database entries"},
}

// Source annotates loci with gene-keyed OMIM and HPO knowledge. Its indexes
// are read-only after construction, so Annotate may be called concurrently.
type Source struct {
	genes  *genelocation.Index
	omim   omim.Index
	hpo    hpo.Index
	logger *zap.Logger
}

// New creates a Source over prebuilt indexes.
func New(genes *genelocation.Index, omimIdx omim.Index, hpoIdx hpo.Index) *Source {
	return &Source{genes: genes, omim: omimIdx, hpo: hpoIdx, logger: zap.NewNop()}
}

// SetLogger sets the logger for the source.
func (s *Source) SetLogger(l *zap.Logger) {
	s.logger = l
}

func (s *Source) Name() string { return "omimhpo" }

// CanAnnotate requires a chromosome and a position.
func (s *Source) CanAnnotate(schema annotate.Schema) (bool, string) {
	return annotate.CheckRequirements(schema, annotate.RequireChrom, annotate.RequirePos)
}

func (s *Source) OutputFields() []annotate.Field {
	return outputFields
}

// Annotate resolves the record's locus and returns at most one record.
func (s *Source) Annotate(rec annotate.Record) ([]annotate.Record, error) {
	chrom, ok := rec.String(annotate.FieldChrom)
	if !ok {
		return nil, fmt.Errorf("omimhpo: record has no %s", annotate.FieldChrom)
	}
	pos, ok := rec.Int64(annotate.FieldPos)
	if !ok {
		return nil, fmt.Errorf("omimhpo: record has no %s", annotate.FieldPos)
	}
	return s.AnnotateLocus(genelocation.Locus{Chrom: chrom, Pos: pos}), nil
}

// AnnotateLocus emits one record for the gene at l when that gene has both
// OMIM and HPO entries. Loci outside any gene, or in a gene missing from
// either catalog, produce no records.
func (s *Source) AnnotateLocus(l genelocation.Locus) []annotate.Record {
	gene, ok := s.genes.Resolve(l)
	if !ok {
		return nil
	}
	omimTerms := s.omim[gene]
	hpoTerms := s.hpo[gene]
	if len(omimTerms) == 0 || len(hpoTerms) == 0 {
		s.logger.Debug("gene lacks omim or hpo entries",
			zap.String("locus", l.String()),
			zap.String("gene", gene),
			zap.Int("omim", len(omimTerms)),
			zap.Int("hpo", len(hpoTerms)))
		return nil
	}
	return []annotate.Record{merge(l, omimTerms, hpoTerms)}
}

func merge(l genelocation.Locus, omimTerms []omim.Term, hpoTerms []hpo.Term) annotate.Record {
	var (
		disorders, cyto, hgnc           orderedSet[string]
		entries, types, causal          orderedSet[int64]
		hpoIDs, descs, genes, diseaseDB orderedSet[string]
		entrez, diseaseEntries          orderedSet[int64]
	)
	for _, t := range omimTerms {
		disorders.add(t.Name)
		entries.add(int64(t.Entry))
		types.add(int64(t.Type))
		causal.add(int64(t.CausedByEntry))
		cyto.add(t.CytoLocation)
		for _, g := range t.GeneSymbols {
			hgnc.add(g)
		}
	}
	for _, t := range hpoTerms {
		hpoIDs.add(t.ID)
		descs.add(t.Description)
		genes.add(t.GeneName)
		entrez.add(int64(t.GeneEntrezID))
		diseaseDB.add(t.DiseaseDB)
		diseaseEntries.add(int64(t.DiseaseDBEntry))
	}

	return annotate.Record{
		annotate.FieldChrom:    l.Chrom,
		annotate.FieldPos:      l.Pos,
		FieldOMIMDisorders:     disorders.values(),
		FieldOMIMEntry:         entries.values(),
		FieldOMIMType:          types.values(),
		FieldOMIMCausalID:      causal.values(),
		FieldOMIMCytoLocation:  cyto.values(),
		FieldOMIMHGNCIDs:       hgnc.values(),
		FieldHPOIDs:            hpoIDs.values(),
		FieldHPODescriptions:   descs.values(),
		FieldHPOGeneName:       genes.values(),
		FieldHPOEntrezID:       entrez.values(),
		FieldHPODiseaseDB:      diseaseDB.values(),
		FieldHPODiseaseDBEntry: diseaseEntries.values(),
	}
}

// orderedSet keeps unique values in first-seen order.
type orderedSet[T comparable] struct {
	seen  map[T]struct{}
	items []T
}

func (s *orderedSet[T]) add(v T) {
	if s.seen == nil {
		s.seen = make(map[T]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet[T]) values() []T {
	return s.items
}
