// Package main provides the vibe-annot command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configName is the config file name in the home directory, without extension.
const configName = ".vibe-annot"

// hintError carries a suggestion printed after the error message.
type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

func withHint(err error, format string, args ...any) error {
	return &hintError{err: err, hint: fmt.Sprintf(format, args...)}
}

// usageError marks errors caused by invalid arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var he *hintError
	if errors.As(err, &he) {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", he.hint)
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitError
}

// usageArgs marks errors of an argument validator as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// markUsageErrors wraps the argument validators of cmd and its subcommands.
func markUsageErrors(cmd *cobra.Command) {
	if cmd.Args != nil {
		cmd.Args = usageArgs(cmd.Args)
	}
	for _, c := range cmd.Commands() {
		markUsageErrors(c)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "vibe-annot",
		Short: "Annotate variants with OMIM/HPO phenotypes and CADD scores",
		Long: `vibe-annot annotates VCF or MAF variants with disease and phenotype knowledge
from OMIM and HPO, keyed by the gene overlapping each variant, and with CADD
deleteriousness scores keyed by exact allele.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Unknown subcommands fail argument validation.
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-annot.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newAnnotateCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newCaddCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	markUsageErrors(root)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vibe-annot version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// setDefaults registers the default value of every config key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", filepath.Join(os.TempDir(), "vibe-annot"))
	v.SetDefault("sources.gene_locations", defaultSources.GeneLocations)
	v.SetDefault("sources.omim", defaultSources.OMIM)
	v.SetDefault("sources.hpo", defaultSources.HPO)
	v.SetDefault("fetch.timeout", "10m")
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("cadd.db", defaultCaddDB())
	v.SetDefault("cadd.preload", false)
	v.SetDefault("cadd.lru_size", 100_000)
	v.SetDefault("annotate.workers", 0)
	v.SetDefault("annotate.phenotype", true)
	v.SetDefault("annotate.cadd", false)
}

func defaultCaddDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vibe-annot", "cadd.duckdb")
	}
	return filepath.Join(home, ".vibe-annot", "cadd.duckdb")
}

// initConfig reads the config file and environment into the global viper
// instance. A missing config file is not an error.
func initConfig(cfgFile string) error {
	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("VIBE_ANNOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return withHint(fmt.Errorf("read config: %w", err), "Check the YAML syntax of %s", viper.ConfigFileUsed())
	}
	return nil
}

// newLogger builds the CLI logger. Verbose mode switches to the development
// config with debug level.
func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	cfg.DisableStacktrace = true
	return cfg.Build()
}
