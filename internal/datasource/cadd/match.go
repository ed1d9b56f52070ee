package cadd

import (
	"strings"

	"github.com/inodb/vibe-annot/internal/vcf"
)

// ScoreLookup returns the score of a single allele. A missing score is not
// an error.
type ScoreLookup interface {
	Lookup(k Key) (Score, bool, error)
}

// MapLookup is an in-memory ScoreLookup.
type MapLookup map[Key]Score

// Lookup implements ScoreLookup.
func (m MapLookup) Lookup(k Key) (Score, bool, error) {
	k.Chrom = NormalizeChrom(k.Chrom)
	sc, ok := m[k]
	return sc, ok, nil
}

// BatchScoreLookup resolves many alleles at once. Alleles without a score
// are absent from the result.
type BatchScoreLookup interface {
	BatchLookup(keys []Key) (map[Key]Score, error)
}

// BatchLookup implements BatchScoreLookup.
func (m MapLookup) BatchLookup(keys []Key) (map[Key]Score, error) {
	out := make(map[Key]Score, len(keys))
	for _, k := range keys {
		k.Chrom = NormalizeChrom(k.Chrom)
		if sc, ok := m[k]; ok {
			out[k] = sc
		}
	}
	return out, nil
}

// Match looks up every allele of the comma-separated alts list and joins the
// scores of the matching alleles with ",", in input order. Alleles without a
// score contribute nothing. ok is false when no allele matched.
func Match(lookup ScoreLookup, chrom string, pos int64, ref, alts string) (raw, scaled string, ok bool, err error) {
	return join(alleleKeys(chrom, pos, ref, alts), lookup.Lookup)
}

// MatchBatch is Match with all alleles resolved in one BatchLookup call.
func MatchBatch(lookup BatchScoreLookup, chrom string, pos int64, ref, alts string) (raw, scaled string, ok bool, err error) {
	keys := alleleKeys(chrom, pos, ref, alts)
	scores, err := lookup.BatchLookup(keys)
	if err != nil {
		return "", "", false, err
	}
	return join(keys, func(k Key) (Score, bool, error) {
		sc, found := scores[k]
		return sc, found, nil
	})
}

func alleleKeys(chrom string, pos int64, ref, alts string) []Key {
	chrom = NormalizeChrom(chrom)
	var keys []Key
	for _, alt := range vcf.SplitAlleles(alts) {
		keys = append(keys, Key{Chrom: chrom, Pos: pos, Ref: ref, Alt: alt})
	}
	return keys
}

func join(keys []Key, lookup func(Key) (Score, bool, error)) (raw, scaled string, ok bool, err error) {
	var raws, scaleds []string
	for _, k := range keys {
		sc, found, err := lookup(k)
		if err != nil {
			return "", "", false, err
		}
		if !found {
			continue
		}
		raws = append(raws, sc.Raw)
		scaleds = append(scaleds, sc.Scaled)
	}
	if len(raws) == 0 {
		return "", "", false, nil
	}
	return strings.Join(raws, ","), strings.Join(scaleds, ","), true, nil
}
