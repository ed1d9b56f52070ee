// Package genelocation maps genomic positions to HGNC gene symbols.
package genelocation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/inodb/vibe-annot/internal/datasource"
)

// Default source location and cache key.
const (
	DefaultURL = "https://molgenis26.target.rug.nl/downloads/5gpm/GRCh37p13_HGNC_GeneLocations_noPatches.tsv"
	CacheKey   = "HGNC_gene_locations_GRCH37.tsv"
)

const dataset = "gene_locations"

// Padding is how far outside a gene interval a position still resolves to it.
const Padding = 5

var chromPattern = regexp.MustCompile(`^([0-9]+|X)$`)

// Locus is a position on a chromosome.
type Locus struct {
	Chrom string
	Pos   int64
}

func (l Locus) String() string {
	return fmt.Sprintf("%s:%d", l.Chrom, l.Pos)
}

// GeneInterval is the genomic extent of one gene (1-based, inclusive).
type GeneInterval struct {
	Symbol string
	Chrom  string
	Start  int64
	End    int64
}

// Contains returns true if pos lies within the padded interval.
func (g GeneInterval) Contains(pos int64) bool {
	return pos >= g.Start-Padding && pos <= g.End+Padding
}

// ParseLines parses a gene location table with columns
// symbol, start, end, chromosome. Rows on chromosomes other than 1-22 and X
// are skipped. A symbol listed more than once keeps its last row.
func ParseLines(lines []string) ([]GeneInterval, error) {
	bySymbol := make(map[string]int)
	genes := make([]GeneInterval, 0, len(lines))
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, ok, err := parseLine(i+1, line)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if j, dup := bySymbol[g.Symbol]; dup {
			genes[j] = g
			continue
		}
		bySymbol[g.Symbol] = len(genes)
		genes = append(genes, g)
	}
	return genes, nil
}

func parseLine(lineNo int, line string) (GeneInterval, bool, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return GeneInterval{}, false, &datasource.FormatError{
			Dataset: dataset,
			Line:    lineNo,
			Err:     fmt.Errorf("expected 4 columns, found %d", len(fields)),
		}
	}
	if !chromPattern.MatchString(fields[3]) {
		return GeneInterval{}, false, nil
	}

	start, err := datasource.ParseInt64(dataset, lineNo, "start", fields[1])
	if err != nil {
		return GeneInterval{}, false, err
	}
	end, err := datasource.ParseInt64(dataset, lineNo, "end", fields[2])
	if err != nil {
		return GeneInterval{}, false, err
	}
	if start > end {
		return GeneInterval{}, false, &datasource.FormatError{
			Dataset: dataset,
			Line:    lineNo,
			Field:   "start",
			Value:   fields[1],
			Err:     fmt.Errorf("start after end %d", end),
		}
	}

	return GeneInterval{Symbol: fields[0], Chrom: fields[3], Start: start, End: end}, true, nil
}
