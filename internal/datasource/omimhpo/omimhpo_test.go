package omimhpo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/datasource"
	"github.com/inodb/vibe-annot/internal/datasource/hpo"
	"github.com/inodb/vibe-annot/internal/datasource/omim"
	"github.com/inodb/vibe-annot/internal/genelocation"
	"github.com/inodb/vibe-annot/internal/refcache"
)

const testGeneLocations = `KRAS	25357723	25403870	12
GMPS	155597777	155651913	3
PEX14	10535002	10690813	1
TP53	7565097	7590856	17
`

const testMorbidMap = `Noonan syndrome 3, 609942 (3)|KRAS, KRAS2, RASK2, NS, CFC2|190070|12p12.1
Cardiofaciocutaneous syndrome 2, 615278 (3)|KRAS, KRAS2, RASK2, NS, CFC2|190070|12p12.1
Leukemia, acute myelogenous (3)|KRAS, KRAS2, RASK2, NS, CFC2|190070|12p12.1
Leukemia, acute myelogenous, 601626 (3)|GMPS|600358|3q25.31
Li-Fraumeni syndrome, 151623 (3)|TP53, P53, LFS1|191170|17p13.1
`

const testHPO = `#Format: diseaseId<tab>gene-symbol<tab>gene-id<tab>HPO-ID<tab>HPO-term-name
OMIM:609942	KRAS	3845	HP:0001631	Atrial septal defect
OMIM:615278	KRAS	3845	HP:0001631	Atrial septal defect
OMIM:615278	KRAS	3845	HP:0000316	Hypertelorism
ORPHA:648	KRAS	3845	HP:0000316	Hypertelorism
OMIM:614887	PEX14	5195	HP:0002240	Hepatomegaly
OMIM:151623	TP53	7157	HP:0002664	Neoplasm
`

type mapFetcher struct {
	data  map[string]string
	fail  map[string]error
	calls atomic.Int32
}

func (f *mapFetcher) Fetch(_ context.Context, location, cacheKey string) ([]string, error) {
	f.calls.Add(1)
	if err, ok := f.fail[cacheKey]; ok {
		return nil, err
	}
	return strings.Split(f.data[cacheKey], "\n"), nil
}

func newTestFetcher() *mapFetcher {
	return &mapFetcher{data: map[string]string{
		genelocation.CacheKey: testGeneLocations,
		omim.CacheKey:         testMorbidMap,
		hpo.CacheKey:          testHPO,
	}}
}

func loadTestSource(t *testing.T) *Source {
	t.Helper()
	s, err := Load(context.Background(), newTestFetcher(), DefaultSources(), nil)
	require.NoError(t, err)
	return s
}

func TestAnnotateLocus_GeneInBothCatalogs(t *testing.T) {
	s := loadTestSource(t)

	recs := s.AnnotateLocus(genelocation.Locus{Chrom: "12", Pos: 25398284})
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "12", rec[annotate.FieldChrom])
	assert.Equal(t, int64(25398284), rec[annotate.FieldPos])
	assert.Equal(t, []string{"Noonan syndrome 3", "Cardiofaciocutaneous syndrome 2"}, rec[FieldOMIMDisorders])
	assert.Equal(t, []int64{609942, 615278}, rec[FieldOMIMEntry])
	assert.Equal(t, []int64{3}, rec[FieldOMIMType])
	assert.Equal(t, []int64{190070}, rec[FieldOMIMCausalID])
	assert.Equal(t, []string{"12p12.1"}, rec[FieldOMIMCytoLocation])
	assert.Equal(t, []string{"KRAS", "KRAS2", "RASK2", "NS", "CFC2"}, rec[FieldOMIMHGNCIDs])

	assert.Equal(t, []string{"HP:0001631", "HP:0000316"}, rec[FieldHPOIDs])
	assert.Equal(t, []string{"Atrial septal defect", "Hypertelorism"}, rec[FieldHPODescriptions])
	assert.Equal(t, []string{"KRAS"}, rec[FieldHPOGeneName])
	assert.Equal(t, []int64{3845}, rec[FieldHPOEntrezID])
	assert.Equal(t, []string{"OMIM", "ORPHA"}, rec[FieldHPODiseaseDB])
	assert.Equal(t, []int64{609942, 615278, 648}, rec[FieldHPODiseaseDBEntry])

	for _, f := range s.OutputFields() {
		assert.Contains(t, rec, f.Name)
	}
}

func TestAnnotateLocus_AndJoin(t *testing.T) {
	s := loadTestSource(t)

	tests := []struct {
		name  string
		locus genelocation.Locus
		want  int
	}{
		{"omim and hpo", genelocation.Locus{Chrom: "17", Pos: 7577120}, 1},
		{"omim only", genelocation.Locus{Chrom: "3", Pos: 155600000}, 0},
		{"hpo only", genelocation.Locus{Chrom: "1", Pos: 10600000}, 0},
		{"no gene", genelocation.Locus{Chrom: "1", Pos: 100}, 0},
		{"unknown chromosome", genelocation.Locus{Chrom: "22", Pos: 100}, 0},
		{"chr prefix", genelocation.Locus{Chrom: "chr17", Pos: 7577120}, 1},
		{"padding", genelocation.Locus{Chrom: "17", Pos: 7565092}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, s.AnnotateLocus(tt.locus), tt.want)
		})
	}
}

func TestAnnotate_Record(t *testing.T) {
	s := loadTestSource(t)

	in := annotate.Record{
		annotate.FieldChrom: "17",
		annotate.FieldPos:   int64(7577120),
		annotate.FieldRef:   "C",
		annotate.FieldAlt:   "T",
	}
	orig := in.Clone()

	recs, err := s.Annotate(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"Li-Fraumeni syndrome"}, recs[0][FieldOMIMDisorders])
	assert.Equal(t, []string{"TP53", "P53", "LFS1"}, recs[0][FieldOMIMHGNCIDs])
	assert.Equal(t, orig, in, "input must not be modified")

	_, err = s.Annotate(annotate.Record{annotate.FieldPos: int64(1)})
	assert.Error(t, err)
}

func TestCanAnnotate(t *testing.T) {
	s := New(genelocation.NewIndex(nil), nil, nil)

	ok, reason := s.CanAnnotate(annotate.InputSchema)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = s.CanAnnotate(annotate.Schema{
		{Name: annotate.FieldChrom, Type: annotate.FieldTypeString},
		{Name: annotate.FieldPos, Type: annotate.FieldTypeDecimal},
	})
	assert.False(t, ok)
	assert.Equal(t, annotate.ReasonWrongDatatype, reason)

	ok, reason = s.CanAnnotate(annotate.Schema{
		{Name: annotate.FieldChrom, Type: annotate.FieldTypeString},
	})
	assert.False(t, ok)
	assert.Equal(t, "missing required attribute POS", reason)
}

func TestOutputFields(t *testing.T) {
	s := New(genelocation.NewIndex(nil), nil, nil)
	fields := s.OutputFields()
	require.Len(t, fields, 12)
	assert.Equal(t, FieldOMIMDisorders, fields[0].Name)
	assert.Equal(t, FieldHPODiseaseDBEntry, fields[11].Name)
	assert.Equal(t, fields, s.OutputFields(), "declared fields are static")
}

func TestLoad_FetchFailure(t *testing.T) {
	f := newTestFetcher()
	f.fail = map[string]error{
		omim.CacheKey: &refcache.FetchError{Location: omim.DefaultURL, CacheKey: omim.CacheKey, Err: errors.New("connection refused")},
	}

	s, err := Load(context.Background(), f, DefaultSources(), nil)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, refcache.ErrIOFailure)
}

func TestLoad_FormatError(t *testing.T) {
	f := newTestFetcher()
	f.data[hpo.CacheKey] = "OMIM:609942\tKRAS\tNA\tHP:0001631\tAtrial septal defect"

	s, err := Load(context.Background(), f, DefaultSources(), nil)
	require.Error(t, err)
	assert.Nil(t, s)

	var fe *datasource.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "hpo", fe.Dataset)
	assert.Equal(t, "entrez_gene_id", fe.Field)
}

func TestLoad_ThroughReferenceCache(t *testing.T) {
	srcDir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(srcDir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	src := Sources{
		GeneLocations: write("genes.tsv", testGeneLocations),
		OMIM:          write("morbidmap", testMorbidMap),
		HPO:           write("hpo.txt", testHPO),
	}

	cacheDir := t.TempDir()
	s, err := Load(context.Background(), refcache.New(cacheDir), src, nil)
	require.NoError(t, err)
	assert.Len(t, s.AnnotateLocus(genelocation.Locus{Chrom: "12", Pos: 25398284}), 1)

	for _, key := range []string{genelocation.CacheKey, omim.CacheKey, hpo.CacheKey} {
		assert.FileExists(t, filepath.Join(cacheDir, key))
	}
}
