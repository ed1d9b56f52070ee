// Package omim parses the OMIM morbid map gene/disease catalog.
package omim

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-annot/internal/datasource"
)

// Default source location and cache key.
const (
	DefaultURL = "ftp://ftp.omim.org/omim/morbidmap"
	CacheKey   = "morbid_map"
)

const dataset = "omim"

// Term is one morbid map entry. The line
//
//	Leukemia, acute myelogenous, 601626 (3)|GMPS|600358|3q25.31
//
// becomes Term{Entry: 601626, Name: "Leukemia, acute myelogenous", Type: 3,
// CausedByEntry: 600358, CytoLocation: "3q25.31", GeneSymbols: ["GMPS"]}.
type Term struct {
	Entry         int
	Name          string
	Type          int
	CausedByEntry int
	CytoLocation  string
	GeneSymbols   []string
}

// ParseLines parses morbid map lines. Lines whose phenotype column carries no
// numeric OMIM entry, e.g.
//
//	Leukemia, acute myelogenous (3)|KRAS, KRAS2, RASK2, NS, CFC2|190070|12p12.1
//
// are dropped. Numeric fields of kept lines that fail to parse fail the
// whole parse.
func ParseLines(lines []string) ([]Term, error) {
	terms := make([]Term, 0, len(lines))
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, ok, err := parseLine(i+1, line)
		if err != nil {
			return nil, err
		}
		if ok {
			terms = append(terms, t)
		}
	}
	return terms, nil
}

func parseLine(lineNo int, line string) (Term, bool, error) {
	// Current morbidmap.txt releases are tab-delimited.
	sep := "|"
	if !strings.Contains(line, sep) {
		sep = "\t"
	}
	fields := strings.Split(line, sep)
	if len(fields) < 4 {
		return Term{}, false, &datasource.FormatError{
			Dataset: dataset,
			Line:    lineNo,
			Err:     fmt.Errorf("expected 4 columns, found %d", len(fields)),
		}
	}

	// "<name>, <entry> (<type>)": the entry sits at a fixed offset from the end.
	pheno := fields[0]
	n := len(pheno)
	if n < 12 {
		return Term{}, false, nil
	}
	entry := pheno[n-10 : n-4]
	if !isDigits(entry) {
		return Term{}, false, nil
	}

	omimEntry, err := datasource.ParseInt(dataset, lineNo, "entry", entry)
	if err != nil {
		return Term{}, false, err
	}
	typ, err := datasource.ParseInt(dataset, lineNo, "type", pheno[n-2:n-1])
	if err != nil {
		return Term{}, false, err
	}
	causedBy, err := datasource.ParseInt(dataset, lineNo, "mim_number", fields[2])
	if err != nil {
		return Term{}, false, err
	}

	return Term{
		Entry:         omimEntry,
		Name:          pheno[:n-12],
		Type:          typ,
		CausedByEntry: causedBy,
		CytoLocation:  fields[3],
		GeneSymbols:   strings.Split(fields[1], ", "),
	}, true, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Index maps a gene symbol to the terms listing it, in source order.
type Index map[string][]Term

// BuildIndex adds every term under each of its gene symbols.
func BuildIndex(terms []Term) Index {
	idx := make(Index)
	for _, t := range terms {
		for _, gene := range t.GeneSymbols {
			idx[gene] = append(idx[gene], t)
		}
	}
	return idx
}

// Has returns true if the gene has at least one term.
func (idx Index) Has(gene string) bool {
	return len(idx[gene]) > 0
}
