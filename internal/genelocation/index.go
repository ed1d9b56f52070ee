package genelocation

import (
	"cmp"
	"slices"
	"sort"
	"strings"
)

// Index resolves loci to gene symbols. It is built once and is safe for
// concurrent reads.
type Index struct {
	trees map[string]*intervalTree
	size  int
}

// NewIndex groups genes by chromosome and orders each group by start
// position, then symbol.
func NewIndex(genes []GeneInterval) *Index {
	byChrom := make(map[string][]GeneInterval)
	for _, g := range genes {
		byChrom[g.Chrom] = append(byChrom[g.Chrom], g)
	}
	idx := &Index{trees: make(map[string]*intervalTree, len(byChrom)), size: len(genes)}
	for chrom, gs := range byChrom {
		idx.trees[chrom] = buildIntervalTree(gs)
	}
	return idx
}

// Len returns the number of indexed genes.
func (idx *Index) Len() int {
	return idx.size
}

// Resolve returns the first gene, in index order, whose padded interval
// contains the locus.
func (idx *Index) Resolve(l Locus) (string, bool) {
	tree, ok := idx.trees[normalizeChrom(l.Chrom)]
	if !ok {
		return "", false
	}
	g, ok := tree.first(l.Pos)
	if !ok {
		return "", false
	}
	return g.Symbol, true
}

func normalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// intervalTree answers first-match queries over padded gene intervals using
// a sorted slice and a prefix maximum of interval ends.
type intervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
}

type interval struct {
	start int64
	end   int64
	gene  GeneInterval
}

func buildIntervalTree(genes []GeneInterval) *intervalTree {
	if len(genes) == 0 {
		return &intervalTree{}
	}

	intervals := make([]interval, len(genes))
	for i, g := range genes {
		intervals[i] = interval{start: g.Start - Padding, end: g.End + Padding, gene: g}
	}

	slices.SortFunc(intervals, func(a, b interval) int {
		return cmp.Or(
			cmp.Compare(a.gene.Start, b.gene.Start),
			cmp.Compare(a.gene.Symbol, b.gene.Symbol),
		)
	})

	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = max(maxEnd[i-1], intervals[i].end)
	}

	return &intervalTree{intervals: intervals, maxEnd: maxEnd}
}

// first returns the lowest-index interval containing pos.
func (t *intervalTree) first(pos int64) (GeneInterval, bool) {
	// Candidates have start <= pos: [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > pos
	})
	// Nothing before lo reaches pos.
	lo := sort.Search(hi, func(i int) bool {
		return t.maxEnd[i] >= pos
	})
	for i := lo; i < hi; i++ {
		if t.intervals[i].end >= pos {
			return t.intervals[i].gene, true
		}
	}
	return GeneInterval{}, false
}
