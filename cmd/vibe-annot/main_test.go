package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGeneLocations = "KRAS\t25357723\t25403870\t12\nGMPS\t155597777\t155651913\t3\n"
	testMorbidMap     = "Noonan syndrome 3, 609942 (3)|KRAS, KRAS2, RASK2, NS, CFC2|190070|12p12.1\n" +
		"Leukemia, acute myelogenous, 601626 (3)|GMPS|600358|3q25.31\n"
	testHPO = "#Format: diseaseId<tab>gene-symbol<tab>gene-id<tab>HPO-ID<tab>HPO-term-name\n" +
		"OMIM:609942\tKRAS\t3845\tHP:0001631\tAtrial septal defect\n"
	testCADD = "## CADD GRCh37-v1.4\n" +
		"#Chrom\tPos\tRef\tAlt\tRawScore\tPHRED\n" +
		"1\t100\tC\tT\t-0.03\t2.003\n" +
		"3\t300\tG\tT\t-2.4\t0.123\n" +
		"3\t300\tG\tA\t0.2\t23.1\n" +
		"3\t300\tG\tC\t0.5\t14.5\n"
)

// setupConfig resets the global config, points HOME at a temp directory and
// writes a config file whose reference sources are local files.
func setupConfig(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir = t.TempDir()
	t.Setenv("HOME", dir)

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	cfg := "cache:\n  dir: " + filepath.Join(dir, "cache") + "\n" +
		"sources:\n" +
		"  gene_locations: " + write("genes.tsv", testGeneLocations) + "\n" +
		"  omim: " + write("morbidmap.txt", testMorbidMap) + "\n" +
		"  hpo: " + write("hpo.txt", testHPO) + "\n" +
		"cadd:\n  db: " + filepath.Join(dir, "cadd.duckdb") + "\n" +
		"annotate:\n  workers: 2\n"
	cfgPath = write("config.yaml", cfg)
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sampleVCF(t *testing.T) string {
	t.Helper()
	p := filepath.Join("..", "..", "testdata", "sample.vcf")
	_, err := os.Stat(p)
	require.NoError(t, err)
	return p
}

func TestAnnotate_Phenotype(t *testing.T) {
	dir, cfg := setupConfig(t)
	outPath := filepath.Join(dir, "out.tsv")

	_, err := execute(t, "annotate", "--config", cfg, "-o", outPath, sampleVCF(t))
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2, "header plus the KRAS variant")
	assert.True(t, strings.HasPrefix(lines[0], "#CHROM\tPOS\tREF\tALT\tANNOTATOR\tOMIM_Disorders\t"))
	assert.True(t, strings.HasPrefix(lines[1], "12\t25398284\tC\tA\tomimhpo\tNoonan syndrome 3\t609942\t"))

	// Reference data is now in the cache directory.
	for _, name := range []string{"HGNC_gene_locations_GRCH37.tsv", "morbid_map", "diseases_to_genes_to_phenotypes.txt"} {
		assert.FileExists(t, filepath.Join(dir, "cache", name))
	}
}

func TestAnnotate_MAFOutput(t *testing.T) {
	dir, cfg := setupConfig(t)
	outPath := filepath.Join(dir, "out.maf")
	input := filepath.Join("..", "..", "testdata", "sample.maf")

	_, err := execute(t, "annotate", "--config", cfg, "-f", "maf", "-o", outPath, input)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Hugo_Symbol\t"))
	assert.True(t, strings.HasSuffix(lines[0], "\tdbSNP_RS\tOMIM_Disorders\tOMIM_Entry\tOMIM_Type\tOMIM_Causal_ID\tOMIM_Cytogenic_Location\tOMIM_HGNC_IDs\tHPO_IDs\tHPO_Descriptions\tHPO_Gene_Name\tHPO_Entrez_ID\tHPO_Disease_Database\tHPO_Disease_Database_Entry"))
	assert.True(t, strings.HasPrefix(lines[1], "KRAS\t3845\t"))
	assert.Contains(t, lines[1], "\trs121913529\tNoonan syndrome 3\t609942\t3\t190070\t12p12.1\t")

	_, err = execute(t, "annotate", "--config", cfg, "-f", "maf", sampleVCF(t))
	var ue *usageError
	require.ErrorAs(t, err, &ue)
}

func TestAnnotate_CADD(t *testing.T) {
	dir, cfg := setupConfig(t)
	tsv := filepath.Join(dir, "cadd.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte(testCADD), 0o644))

	out, err := execute(t, "cadd", "load", "--config", cfg, tsv)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 4 CADD scores")

	out, err = execute(t, "cadd", "load", "--config", cfg, tsv)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date (4 scores)")

	out, err = execute(t, "cadd", "lookup", "--config", cfg, "chr3", "300", "G", "T,X,C")
	require.NoError(t, err)
	assert.Equal(t, "chr3\t300\tG\tT,X,C\t-2.4,0.5\t0.123,14.5\n", out)

	outPath := filepath.Join(dir, "out.vcf")
	_, err = execute(t, "annotate", "--config", cfg, "--phenotype=false", "--cadd", "-f", "vcf", "-o", outPath, sampleVCF(t))
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "##INFO=<ID=CADD,")
	assert.Contains(t, text, "\n1\t100\t.\tC\tT\t")
	assert.Contains(t, text, "CADD=-2.4,0.2,0.5;CADD_SCALED=0.123,23.1,14.5")
}

func TestAnnotate_CADDNotLoaded(t *testing.T) {
	dir, cfg := setupConfig(t)

	_, err := execute(t, "annotate", "--config", cfg, "--phenotype=false", "--cadd", "-o", filepath.Join(dir, "out.tsv"), sampleVCF(t))
	require.Error(t, err)
	var he *hintError
	require.ErrorAs(t, err, &he)
	assert.Contains(t, he.hint, "vibe-annot cadd load")
}

func TestAnnotate_NoAnnotators(t *testing.T) {
	_, cfg := setupConfig(t)

	_, err := execute(t, "annotate", "--config", cfg, "--phenotype=false", sampleVCF(t))
	var ue *usageError
	require.ErrorAs(t, err, &ue)
}

func TestFetch(t *testing.T) {
	dir, cfg := setupConfig(t)

	out, err := execute(t, "fetch", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Reference data cached in "+filepath.Join(dir, "cache"))
	assert.Contains(t, out, "morbid_map")
}

func TestFetch_Unreachable(t *testing.T) {
	dir, cfg := setupConfig(t)
	t.Setenv("VIBE_ANNOT_SOURCES_OMIM", filepath.Join(dir, "missing.txt"))
	t.Setenv("VIBE_ANNOT_FETCH_RETRIES", "0")

	_, err := execute(t, "fetch", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "morbid_map")
}

func TestConfigSetGet(t *testing.T) {
	dir, _ := setupConfig(t)

	out, err := execute(t, "config", "set", "annotate.cadd", "yes")
	require.NoError(t, err)
	cfgFile := filepath.Join(dir, ".vibe-annot.yaml")
	assert.Contains(t, out, "Set annotate.cadd = yes in "+cfgFile)

	v := viper.New()
	v.SetConfigFile(cfgFile)
	require.NoError(t, v.ReadInConfig())
	assert.True(t, v.GetBool("annotate.cadd"))

	viper.Reset()
	out, err = execute(t, "config", "get", "annotate.cadd")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestConfigShow_Defaults(t *testing.T) {
	setupConfig(t)

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "lru_size: 100000")
	assert.Contains(t, out, "timeout: 10m")
}

func TestRun_ExitCodes(t *testing.T) {
	_, cfg := setupConfig(t)

	assert.Equal(t, ExitSuccess, run([]string{"version"}))
	assert.Equal(t, ExitUsage, run([]string{"bogus"}))
	assert.Equal(t, ExitUsage, run([]string{"annotate"}))
	assert.Equal(t, ExitUsage, run([]string{"annotate", "--config", cfg, "-f", "json", sampleVCF(t)}))
	assert.Equal(t, ExitError, run([]string{"annotate", "--config", cfg, "does-not-exist.vcf"}))
	assert.Equal(t, ExitUsage, run([]string{"annotate", "--no-such-flag", sampleVCF(t)}))
	assert.Equal(t, ExitUsage, run([]string{"version", "extra"}))
	assert.Equal(t, ExitUsage, run([]string{"config", "bogus"}))
}

func TestUsageErrors(t *testing.T) {
	setupConfig(t)

	for _, args := range [][]string{
		{"bogus"},
		{"annotate"},
		{"annotate", "a.vcf", "b.vcf"},
		{"annotate", "--no-such-flag", "a.vcf"},
		{"annotate", "-x", "a.vcf"},
		{"cadd", "lookup", "1", "100"},
		{"cadd", "lookup", "1", "abc", "C", "T"},
		{"config", "set", "annotate.cadd"},
		{"fetch", "--workers", "2"},
	} {
		_, err := execute(t, args...)
		var ue *usageError
		assert.ErrorAs(t, err, &ue, "%v", args)
	}

	// A nil argument slice would make cobra read os.Args.
	out, err := execute(t, []string{}...)
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
}

func TestDetectInputFormat(t *testing.T) {
	dir := t.TempDir()
	mafTxt := filepath.Join(dir, "mutations.txt")
	require.NoError(t, os.WriteFile(mafTxt, []byte("Hugo_Symbol\tChromosome\tStart_Position\tReference_Allele\tTumor_Seq_Allele2\n"), 0o644))
	vcfTxt := filepath.Join(dir, "calls.txt")
	require.NoError(t, os.WriteFile(vcfTxt, []byte("##fileformat=VCFv4.2\n"), 0o644))

	tests := []struct {
		path string
		want string
	}{
		{"input.vcf", "vcf"},
		{"input.VCF.gz", "vcf"},
		{"input.maf", "maf"},
		{"input.maf.gz", "maf"},
		{"/study/data_mutations.txt", "maf"},
		{"-", "vcf"},
		{mafTxt, "maf"},
		{vcfTxt, "vcf"},
		{filepath.Join(dir, "missing.txt"), "vcf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectInputFormat(tt.path), tt.path)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3*1024*1024))
}
