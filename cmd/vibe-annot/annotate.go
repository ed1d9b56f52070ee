package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/datasource/cadd"
	"github.com/inodb/vibe-annot/internal/datasource/omimhpo"
	"github.com/inodb/vibe-annot/internal/maf"
	"github.com/inodb/vibe-annot/internal/output"
	"github.com/inodb/vibe-annot/internal/vcf"
)

type annotateOptions struct {
	outputFormat string
	outputFile   string
	inputFormat  string
}

func newAnnotateCmd() *cobra.Command {
	var opts annotateOptions

	cmd := &cobra.Command{
		Use:   "annotate [options] <input-file>",
		Short: "Annotate variants in a VCF or MAF file",
		Long: `Annotate variants in a VCF or MAF file with OMIM/HPO phenotypes of the
overlapping gene and with CADD scores of each alternate allele.

Reference data is fetched on first use and cached in cache.dir. CADD scores
must be loaded once with "vibe-annot cadd load".`,
		Example: `  vibe-annot annotate input.vcf
  vibe-annot annotate --cadd -f vcf -o output.vcf input.vcf.gz
  vibe-annot annotate --phenotype=false --cadd -f maf data_mutations.txt
  cat input.vcf | vibe-annot annotate -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outputFormat, "output-format", "f", "tab", "Output format: tab, vcf, maf (MAF input only)")
	flags.StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")
	flags.StringVar(&opts.inputFormat, "input-format", "", "Input format: vcf, maf (auto-detected if not specified)")
	flags.Int("workers", 0, "Number of annotation workers (0 = number of CPUs)")
	flags.Bool("phenotype", true, "Annotate with OMIM/HPO phenotypes")
	flags.Bool("cadd", false, "Annotate with CADD scores")
	viper.BindPFlag("annotate.workers", flags.Lookup("workers"))
	viper.BindPFlag("annotate.phenotype", flags.Lookup("phenotype"))
	viper.BindPFlag("annotate.cadd", flags.Lookup("cadd"))

	return cmd
}

func runAnnotate(ctx context.Context, inputPath string, opts annotateOptions, stdout io.Writer) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	switch opts.outputFormat {
	case "tab", "vcf", "maf":
	default:
		return &usageError{fmt.Errorf("unknown output format %q", opts.outputFormat)}
	}

	format := opts.inputFormat
	if format == "" {
		format = detectInputFormat(inputPath)
	}
	if opts.outputFormat == "maf" && format != "maf" {
		return &usageError{errors.New("maf output requires MAF input")}
	}

	in, err := openInput(inputPath, format)
	if err != nil {
		return err
	}
	defer in.Close()

	engine := annotate.NewEngine()
	engine.SetLogger(logger)
	engine.SetWorkers(viper.GetInt("annotate.workers"))

	if viper.GetBool("annotate.phenotype") {
		src, err := omimhpo.Load(ctx, newFetcher(logger), sourcesFromConfig(), logger)
		if err != nil {
			return withHint(err, "Run \"vibe-annot fetch\" or set sources.* to reachable locations")
		}
		engine.Register(src)
	}

	if viper.GetBool("annotate.cadd") {
		store, err := openCaddStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.Loaded() {
			return withHint(errors.New("no CADD scores loaded"),
				"Load scores with: vibe-annot cadd load <whole_genome_SNVs.tsv.gz>")
		}
		if viper.GetBool("cadd.preload") {
			if err := store.PreloadToMemory(); err != nil {
				return err
			}
		}
		src := cadd.NewSource(store)
		src.SetLogger(logger)
		engine.Register(src)
	}

	if len(engine.Annotators()) == 0 {
		return &usageError{errors.New("no annotators enabled")}
	}

	out := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var writer annotate.ResultWriter
	switch opts.outputFormat {
	case "tab":
		writer = output.NewTabWriter(out)
	case "vcf":
		writer = output.NewVCFWriter(out, in.vcfHeader)
	case "maf":
		writer = output.NewMAFWriter(out, in.mafHeader)
	}

	return engine.AnnotateAll(in.reader, vcf.Schema, writer)
}

// input is an opened VCF or MAF file. The header of the input format is kept
// so output in the same format can reproduce it.
type input struct {
	reader    annotate.RecordReader
	parser    vcf.VariantParser
	vcfHeader []string
	mafHeader string
}

func (in *input) Close() error {
	return in.parser.Close()
}

func openInput(path, format string) (*input, error) {
	var (
		in  input
		err error
	)
	switch format {
	case "maf":
		var mp *maf.Parser
		if mp, err = maf.NewParser(path); err == nil {
			in = input{reader: maf.NewRecordReader(mp), parser: mp, mafHeader: mp.Header()}
		}
	case "vcf":
		var vp *vcf.Parser
		if vp, err = vcf.NewParser(path); err == nil {
			in = input{reader: vcf.NewRecordReader(vp), parser: vp, vcfHeader: vp.Header()}
		}
	default:
		return nil, withHint(fmt.Errorf("unknown input format %q", format),
			"Use --input-format to specify vcf or maf")
	}

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, withHint(err, "Check that the file path is correct")
		}
		return nil, err
	}
	return &in, nil
}

func openCaddStore(logger *zap.Logger) (*cadd.Store, error) {
	store, err := cadd.Open(viper.GetString("cadd.db"),
		cadd.WithCacheSize(viper.GetInt("cadd.lru_size")),
		cadd.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open cadd store: %w", err)
	}
	return store, nil
}

// detectInputFormat detects the input file format based on extension or content.
func detectInputFormat(path string) string {
	lowerPath := strings.ToLower(path)
	lowerPath = strings.TrimSuffix(lowerPath, ".gz")

	if strings.HasSuffix(lowerPath, ".vcf") {
		return "vcf"
	}
	if strings.HasSuffix(lowerPath, ".maf") {
		return "maf"
	}

	// cBioPortal MAF filenames
	baseName := filepath.Base(lowerPath)
	if baseName == "data_mutations.txt" || baseName == "data_mutations_extended.txt" {
		return "maf"
	}

	if path == "-" {
		return "vcf"
	}

	file, err := os.Open(path)
	if err != nil {
		return "vcf"
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil || n == 0 {
		return "vcf"
	}
	content := string(buf[:n])

	if strings.HasPrefix(content, "##fileformat=VCF") || strings.HasPrefix(content, "#CHROM") {
		return "vcf"
	}
	if strings.Contains(content, "Chromosome") && strings.Contains(content, "Tumor_Seq_Allele2") {
		return "maf"
	}

	return "vcf"
}
