package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/datasource/hpo"
	"github.com/inodb/vibe-annot/internal/datasource/omim"
	"github.com/inodb/vibe-annot/internal/datasource/omimhpo"
	"github.com/inodb/vibe-annot/internal/genelocation"
	"github.com/inodb/vibe-annot/internal/refcache"
)

var defaultSources = omimhpo.DefaultSources()

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and cache the OMIM, HPO and gene location datasets",
		Long: `Fetch the reference datasets used for phenotype annotation into cache.dir
and check that they parse. Datasets already in the cache are not downloaded
again; delete the cache files to refresh them.

Run this once before starting several annotate processes that share a cache
directory.`,
		Example: `  vibe-annot fetch
  vibe-annot config set sources.omim /data/morbidmap.txt && vibe-annot fetch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			f := newFetcher(logger)
			if _, err := omimhpo.Load(cmd.Context(), f, sourcesFromConfig(), logger); err != nil {
				return withHint(err, "Check network access or point sources.* at local copies")
			}
			return printCacheSummary(cmd.OutOrStdout(), f)
		},
	}
}

// newFetcher creates the reference cache from the fetch.* and cache.dir keys.
func newFetcher(logger *zap.Logger) *refcache.Fetcher {
	retries := viper.GetInt("fetch.retries")
	if retries < 0 {
		retries = 0
	}
	return refcache.New(viper.GetString("cache.dir"),
		refcache.WithTimeout(viper.GetDuration("fetch.timeout")),
		refcache.WithRetries(uint64(retries)),
		refcache.WithLogger(logger))
}

func sourcesFromConfig() omimhpo.Sources {
	return omimhpo.Sources{
		GeneLocations: viper.GetString("sources.gene_locations"),
		OMIM:          viper.GetString("sources.omim"),
		HPO:           viper.GetString("sources.hpo"),
	}
}

func printCacheSummary(w io.Writer, f *refcache.Fetcher) error {
	fmt.Fprintf(w, "Reference data cached in %s\n", f.Dir())
	for _, key := range []string{genelocation.CacheKey, omim.CacheKey, hpo.CacheKey} {
		info, err := os.Stat(f.Path(key))
		if err != nil {
			return fmt.Errorf("stat cache file: %w", err)
		}
		fmt.Fprintf(w, "  %-40s %s\n", key, formatSize(info.Size()))
	}
	return nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
