package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-annot/internal/datasource/cadd"
	"github.com/inodb/vibe-annot/internal/output"
)

func newCaddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cadd",
		Short: "Manage the CADD score store",
		Long:  "Load CADD scores into the DuckDB store at cadd.db and look up single variants.",
	}

	cmd.AddCommand(newCaddLoadCmd())
	cmd.AddCommand(newCaddLookupCmd())

	return cmd
}

func newCaddLoadCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load <cadd.tsv[.gz]>",
		Short: "Load a CADD score TSV into the store",
		Long: `Load a CADD score file (whole_genome_SNVs.tsv.gz, InDels.tsv.gz or a
pre-scored subset) into the store. The file is skipped when the store already
holds it unchanged; use --force to reload.`,
		Example: `  vibe-annot cadd load whole_genome_SNVs.tsv.gz
  vibe-annot cadd load --force InDels.tsv.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			store, err := openCaddStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			loaded := true
			if force {
				err = store.Load(args[0])
			} else {
				loaded, err = store.LoadIfChanged(args[0])
			}
			if err != nil {
				return err
			}

			n, err := store.Count()
			if err != nil {
				return err
			}
			if loaded {
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d CADD scores into %s\n", n, viper.GetString("cadd.db"))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "CADD store is up to date (%d scores)\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reload even if the file is unchanged")

	return cmd
}

func newCaddLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <chrom> <pos> <ref> <alts>",
		Short: "Look up CADD scores of one variant",
		Long: `Print the raw and PHRED-scaled CADD scores of each alternate allele.
Alternate alleles are comma-separated; alleles without a score are left out.`,
		Example: `  vibe-annot cadd lookup 12 25398284 C A
  vibe-annot cadd lookup 3 300 G T,A,C`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return &usageError{fmt.Errorf("invalid position %q", args[1])}
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			store, err := openCaddStore(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			raw, scaled, ok, err := cadd.MatchBatch(store, args[0], pos, args[2], args[3])
			if err != nil {
				return err
			}
			if !ok {
				raw, scaled = "", ""
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\t%s\t%s\n",
				args[0], pos, args[2], args[3], output.FormatValue(raw), output.FormatValue(scaled))
			return nil
		},
	}
}
