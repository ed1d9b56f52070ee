// Package hpo parses the HPO diseases-to-genes-to-phenotypes table.
package hpo

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-annot/internal/datasource"
)

// Default source location and cache key.
const (
	DefaultURL = "http://compbio.charite.de/hudson/job/hpo.annotations.monthly/lastStableBuild/artifact/annotation/ALL_SOURCES_ALL_FREQUENCIES_diseases_to_genes_to_phenotypes.txt"
	CacheKey   = "diseases_to_genes_to_phenotypes.txt"
)

const dataset = "hpo"

// Term is one phenotype association, e.g.
//
//	OMIM:614887	PEX14	5195	HP:0002240	Hepatomegaly
type Term struct {
	ID             string // HP:0002240
	Description    string // Hepatomegaly
	DiseaseDB      string // OMIM
	DiseaseDBEntry int    // 614887
	GeneName       string // PEX14
	GeneEntrezID   int    // 5195
}

// ParseLines parses HPO table lines. Lines starting with '#' and blank lines
// are skipped; any other malformed line fails the whole parse.
func ParseLines(lines []string) ([]Term, error) {
	terms := make([]Term, 0, len(lines))
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseLine(i+1, line)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func parseLine(lineNo int, line string) (Term, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 5 {
		return Term{}, &datasource.FormatError{
			Dataset: dataset,
			Line:    lineNo,
			Err:     fmt.Errorf("expected at least 5 columns, found %d", len(fields)),
		}
	}

	db, entry, ok := strings.Cut(fields[0], ":")
	if !ok {
		return Term{}, &datasource.FormatError{
			Dataset: dataset,
			Line:    lineNo,
			Field:   "disease_id",
			Value:   fields[0],
			Err:     fmt.Errorf("expected <database>:<entry>"),
		}
	}

	dbEntry, err := datasource.ParseInt(dataset, lineNo, "disease_id", entry)
	if err != nil {
		return Term{}, err
	}
	entrezID, err := datasource.ParseInt(dataset, lineNo, "entrez_gene_id", fields[2])
	if err != nil {
		return Term{}, err
	}

	return Term{
		ID:             fields[3],
		Description:    fields[4],
		DiseaseDB:      db,
		DiseaseDBEntry: dbEntry,
		GeneName:       fields[1],
		GeneEntrezID:   entrezID,
	}, nil
}

// Index maps a gene symbol to its terms in source order.
type Index map[string][]Term

// BuildIndex groups terms by gene name.
func BuildIndex(terms []Term) Index {
	idx := make(Index)
	for _, t := range terms {
		idx[t.GeneName] = append(idx[t.GeneName], t)
	}
	return idx
}

// Has returns true if the gene has at least one term.
func (idx Index) Has(gene string) bool {
	return len(idx[gene]) > 0
}
