// Package dataset implements the normalization engine: partition
// discovery, per-row extraction with failure isolation, seeded sampling,
// and lazy streaming over a source's full corpus.
//
// A Dataset handle composes two injected capabilities:
//
//   - a RowProvider, which knows how to list a source's partitions and
//     load one partition's raw-row table at a time, and
//   - a Mapper, the source-specific pure function converting one raw
//     row into canonical fields.
//
// The handle itself is not safe for concurrent use; independent handles
// share nothing and may be driven from separate goroutines.
package dataset

import (
	"log/slog"

	"github.com/csv610/sophoset/internal/logging"
	"github.com/csv610/sophoset/internal/record"
)

// Raw is one unparsed row as delivered by a provider. Field names and
// shapes vary per source; only the Mapper knows how to read them.
type Raw map[string]any

// RowTable is an indexable sequence of raw rows for one loaded
// partition. The owning Dataset handle holds at most one table at a
// time and no other component may mutate it.
type RowTable interface {
	Len() int
	Row(index int) Raw
}

// Partition identifies one (subset, split) pair of a source and its row
// count, computed once at discovery and never mutated.
type Partition struct {
	Subset string
	Split  string
	Rows   int
}

// Name returns the "subset/split" pair for display and error reporting.
func (p Partition) Name() string {
	return p.Subset + "/" + p.Split
}

// RowProvider supplies raw rows for a source. Implementations own any
// network, caching, or retry policy; the engine only sees success or
// failure. A provider must be safe for concurrent use so that parallel
// exporters can drive one handle per partition.
type RowProvider interface {
	// ListPartitions enumerates the (subset, split) pairs of a source
	// and their row counts. Failure to find the source is surfaced as
	// an unknown-partition error.
	ListPartitions(source string) ([]Partition, error)

	// LoadRows loads one partition's raw-row table.
	LoadRows(source, subset, split string) (RowTable, error)
}

// Fields carries the canonical field values extracted from one raw row
// by a source-specific Mapper, before validation and option encoding.
type Fields struct {
	Question    string
	Context     string
	Explanation string

	// OptionList is a plain option sequence; letters are assigned in
	// input order. Mutually exclusive with Options.
	OptionList []string

	// Options is a pre-keyed lettered mapping, validated for label
	// contiguity by the pipeline.
	Options record.Options

	// Answer is the source answer as text (an option label for
	// multiple-choice sources, free text otherwise).
	Answer string

	// AnswerIndex is set when the source encodes the answer as a
	// zero-based option index; the pipeline converts it to a letter.
	AnswerIndex *int

	// Images holds URIs or paths for vision sources.
	Images []string
}

// Mapper is the source-specific mapping capability: a pure function
// from one raw row to canonical fields. It must not perform I/O and
// should return partial or empty fields for recoverable shape
// mismatches rather than an error; an error marks the row failed.
type Mapper func(row Raw, index int) (Fields, error)

// FailureEvent describes one skipped row.
type FailureEvent struct {
	Dataset string
	Subset  string
	Split   string
	Index   int
	Reason  error
}

// Diagnostics receives structured row-failure events. The engine never
// owns a global logger; the host passes a sink in (or accepts the
// default, which logs through the logging package).
type Diagnostics interface {
	RowFailure(ev FailureEvent)
}

// logDiagnostics is the default sink.
type logDiagnostics struct {
	log *slog.Logger
}

func (d *logDiagnostics) RowFailure(ev FailureEvent) {
	d.log.Warn("row skipped",
		"dataset", ev.Dataset,
		"subset", ev.Subset,
		"split", ev.Split,
		"index", ev.Index,
		"error", ev.Reason)
}

// DefaultDiagnostics returns a sink that logs failures at warning level.
func DefaultDiagnostics() Diagnostics {
	return &logDiagnostics{log: logging.Component("extract")}
}
