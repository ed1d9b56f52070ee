package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annot/internal/annotate"
)

var testFields = []annotate.Field{
	{Name: "CADD", Type: annotate.FieldTypeString},
	{Name: "CADD_SCALED", Type: annotate.FieldTypeString},
	{Name: "OMIM_Disorders", Type: annotate.FieldTypeStringSet},
	{Name: "OMIM_Entry", Type: annotate.FieldTypeLongSet},
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader(testFields))
	require.NoError(t, w.Flush())

	assert.Equal(t, "#CHROM\tPOS\tREF\tALT\tANNOTATOR\tCADD\tCADD_SCALED\tOMIM_Disorders\tOMIM_Entry\n", buf.String())
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)
	require.NoError(t, w.WriteHeader(testFields))

	in := annotate.Record{
		annotate.FieldChrom: "3",
		annotate.FieldPos:   int64(300),
		annotate.FieldRef:   "G",
		annotate.FieldAlt:   "T,A,C",
	}

	scored := in.Clone()
	scored["CADD"] = "-2.4,0.2,0.5"
	scored["CADD_SCALED"] = "0.123,23.1,14.5"
	require.NoError(t, w.Write(in, annotate.Result{Source: "cadd", Record: scored}))

	pheno := annotate.Record{
		annotate.FieldChrom: "3",
		annotate.FieldPos:   int64(300),
		"OMIM_Disorders":    []string{"Leukemia, acute myelogenous", "Noonan syndrome 3"},
		"OMIM_Entry":        []int64{601626, 609942},
	}
	require.NoError(t, w.Write(in, annotate.Result{Source: "omimhpo", Record: pheno}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "3\t300\tG\tT,A,C\tcadd\t-2.4,0.2,0.5\t0.123,23.1,14.5\t-\t-", lines[1])
	assert.Equal(t, "3\t300\tG\tT,A,C\tomimhpo\t-\t-\tLeukemia, acute myelogenous;Noonan syndrome 3\t601626;609942", lines[2])
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "-"},
		{"empty string", "", "-"},
		{"string", "KRAS", "KRAS"},
		{"int64", int64(25398284), "25398284"},
		{"int", 7, "7"},
		{"string set", []string{"HP:0001631", "HP:0000316"}, "HP:0001631;HP:0000316"},
		{"empty set", []string{}, "-"},
		{"long set", []int64{3845}, "3845"},
		{"tab in value", "a\tb", "a b"},
		{"other", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.v))
		})
	}
}
