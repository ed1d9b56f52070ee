package annotate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAnnotator returns one output record per input, carrying the position.
type echoAnnotator struct{}

func (echoAnnotator) Name() string { return "echo" }

func (echoAnnotator) CanAnnotate(schema Schema) (bool, string) {
	return CheckRequirements(schema, RequireChrom, RequirePos)
}

func (echoAnnotator) Annotate(rec Record) ([]Record, error) {
	pos, _ := rec.Int64(FieldPos)
	return []Record{{"echo_pos": pos}}, nil
}

func (echoAnnotator) OutputFields() []Field {
	return []Field{{Name: "echo_pos", Type: FieldTypeLong}}
}

func makeItems(n int) <-chan WorkItem {
	ch := make(chan WorkItem, n)
	for i := range n {
		ch <- WorkItem{
			Seq: i,
			Record: Record{
				FieldChrom: "1",
				FieldPos:   int64(100 + i),
				FieldRef:   "A",
				FieldAlt:   "T",
			},
		}
	}
	close(ch)
	return ch
}

func TestParallelAnnotate_OrderPreservation(t *testing.T) {
	results := ParallelAnnotate([]Annotator{echoAnnotator{}}, makeItems(200), 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelAnnotate_SingleWorker(t *testing.T) {
	results := ParallelAnnotate([]Annotator{echoAnnotator{}}, makeItems(50), 1)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 50)
	for i, seq := range collected {
		assert.Equal(t, i, seq)
	}
}

func TestParallelAnnotate_EmptyInput(t *testing.T) {
	ch := make(chan WorkItem)
	close(ch)
	results := ParallelAnnotate([]Annotator{echoAnnotator{}}, ch, 4)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	results := ParallelAnnotate([]Annotator{echoAnnotator{}}, makeItems(100), 4)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		if count == 5 {
			return fmt.Errorf("stop at 5")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 5, count)
}

func TestParallelAnnotate_ProducesResults(t *testing.T) {
	results := ParallelAnnotate([]Annotator{echoAnnotator{}}, makeItems(5), 2)

	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		require.Len(t, r.Results, 1)
		assert.Equal(t, "echo", r.Results[0].Source)
		assert.Equal(t, int64(100+r.Seq), r.Results[0].Record["echo_pos"])
		return nil
	})
	require.NoError(t, err)
}
