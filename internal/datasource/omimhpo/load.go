package omimhpo

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-annot/internal/datasource/hpo"
	"github.com/inodb/vibe-annot/internal/datasource/omim"
	"github.com/inodb/vibe-annot/internal/genelocation"
)

// Fetcher returns the lines of a reference dataset. *refcache.Fetcher
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, location, cacheKey string) ([]string, error)
}

// Sources holds the locations of the three reference datasets.
type Sources struct {
	GeneLocations string
	OMIM          string
	HPO           string
}

// DefaultSources returns the public locations of the reference datasets.
func DefaultSources() Sources {
	return Sources{
		GeneLocations: genelocation.DefaultURL,
		OMIM:          omim.DefaultURL,
		HPO:           hpo.DefaultURL,
	}
}

// Load fetches and parses the gene location table, the OMIM morbid map and
// the HPO table concurrently. Any fetch or parse failure fails the load.
func Load(ctx context.Context, f Fetcher, src Sources, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		genes     []genelocation.GeneInterval
		omimTerms []omim.Term
		hpoTerms  []hpo.Term
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := f.Fetch(ctx, src.GeneLocations, genelocation.CacheKey)
		if err != nil {
			return err
		}
		genes, err = genelocation.ParseLines(lines)
		if err != nil {
			return fmt.Errorf("parse gene locations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lines, err := f.Fetch(ctx, src.OMIM, omim.CacheKey)
		if err != nil {
			return err
		}
		omimTerms, err = omim.ParseLines(lines)
		if err != nil {
			return fmt.Errorf("parse omim morbid map: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lines, err := f.Fetch(ctx, src.HPO, hpo.CacheKey)
		if err != nil {
			return err
		}
		hpoTerms, err = hpo.ParseLines(lines)
		if err != nil {
			return fmt.Errorf("parse hpo table: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load omim/hpo reference data: %w", err)
	}

	genesIdx := genelocation.NewIndex(genes)
	omimIdx := omim.BuildIndex(omimTerms)
	hpoIdx := hpo.BuildIndex(hpoTerms)
	logger.Info("loaded omim/hpo reference data",
		zap.Int("genes", genesIdx.Len()),
		zap.Int("omim_terms", len(omimTerms)),
		zap.Int("omim_genes", len(omimIdx)),
		zap.Int("hpo_terms", len(hpoTerms)),
		zap.Int("hpo_genes", len(hpoIdx)))

	s := New(genesIdx, omimIdx, hpoIdx)
	s.SetLogger(logger)
	return s, nil
}
