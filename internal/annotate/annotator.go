package annotate

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// RecordReader is the interface for sources of input records.
type RecordReader interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (Record, error)
}

// Result is a single output record tagged with the annotator that produced it.
type Result struct {
	Source string
	Record Record
}

// ResultWriter defines the interface for writing annotation results.
type ResultWriter interface {
	WriteHeader(fields []Field) error
	Write(in Record, res Result) error
	Flush() error
}

// Engine holds an ordered list of annotators and runs them over records.
// Annotators are run in registration order.
type Engine struct {
	annotators []Annotator
	workers    int
	logger     *zap.Logger
}

// NewEngine creates an engine with the given annotators.
func NewEngine(annotators ...Annotator) *Engine {
	return &Engine{
		annotators: annotators,
		logger:     zap.NewNop(),
	}
}

// Register appends an annotator to the engine.
func (e *Engine) Register(a Annotator) {
	e.annotators = append(e.annotators, a)
}

// Annotators returns the registered annotators in order.
func (e *Engine) Annotators() []Annotator {
	return e.annotators
}

// SetWorkers sets the number of parallel workers used by AnnotateAll.
// Zero means runtime.NumCPU().
func (e *Engine) SetWorkers(n int) {
	e.workers = n
}

// SetLogger sets the logger for warning and info messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Select returns the annotators that can handle records of the given schema.
// Annotators that cannot are logged with their reason and left out.
func (e *Engine) Select(schema Schema) []Annotator {
	var selected []Annotator
	for _, a := range e.annotators {
		ok, reason := a.CanAnnotate(schema)
		if !ok {
			e.logger.Warn("skipping annotator",
				zap.String("annotator", a.Name()),
				zap.String("reason", reason))
			continue
		}
		selected = append(selected, a)
	}
	return selected
}

// OutputFields returns the union of the declared output fields of the given
// annotators, in annotator order, without duplicates.
func OutputFields(annotators []Annotator) []Field {
	seen := make(map[string]bool)
	var fields []Field
	for _, a := range annotators {
		for _, f := range a.OutputFields() {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// Annotate runs the given annotators over a single record.
func Annotate(annotators []Annotator, rec Record) ([]Result, error) {
	var results []Result
	for _, a := range annotators {
		out, err := a.Annotate(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		for _, r := range out {
			results = append(results, Result{Source: a.Name(), Record: r})
		}
	}
	return results, nil
}

// AnnotateAll annotates all records from reader with the annotators that
// accept schema, writing results to writer in input order.
func (e *Engine) AnnotateAll(reader RecordReader, schema Schema, writer ResultWriter) error {
	selected := e.Select(schema)
	if len(selected) == 0 {
		return fmt.Errorf("no annotator accepts the input schema")
	}

	if err := writer.WriteHeader(OutputFields(selected)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan WorkItem, 2*workers)
	var readErr error
	recordCount := 0

	go func() {
		defer close(items)
		seq := 0
		for {
			rec, err := reader.Next()
			if err != nil {
				readErr = fmt.Errorf("read record: %w", err)
				return
			}
			if rec == nil {
				return
			}
			recordCount++
			items <- WorkItem{Seq: seq, Record: rec}
			seq++
		}
	}()

	results := ParallelAnnotate(selected, items, workers)

	if err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			chrom, _ := r.Record.String(FieldChrom)
			pos, _ := r.Record.Int64(FieldPos)
			e.logger.Warn("failed to annotate record",
				zap.String("chrom", chrom),
				zap.Int64("pos", pos),
				zap.Error(r.Err))
			return nil
		}
		for _, res := range r.Results {
			if err := writer.Write(r.Record, res); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if readErr != nil {
		return readErr
	}

	e.logger.Info("annotation finished", zap.Int("records", recordCount))

	return writer.Flush()
}
