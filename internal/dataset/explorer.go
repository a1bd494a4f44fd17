package dataset

import (
	"log/slog"

	"github.com/csv610/sophoset/internal/logging"
	"github.com/csv610/sophoset/internal/record"
)

// Explorer is a lazy, finite, restartable iterator over canonical
// records: ascending over partitions in catalog-discovery order, then
// ascending row index within each partition.
//
// Usage follows the usual pull-iterator shape:
//
//	ex := ds.Stream()
//	defer ex.Close()
//	for ex.Next() {
//	    rec := ex.Record()
//	    ...
//	}
//	if err := ex.Err(); err != nil { ... }
//
// Stopping early is always safe; Close releases the active raw-row
// table on every exit path. Each Stream call returns a fresh Explorer
// holding no cross-call state.
type Explorer struct {
	ds    *Dataset
	parts []Partition // nil until started when enumerating all

	restricted bool // parts was supplied by the caller

	pi      int // next partition to load
	ri      int // next row within the loaded partition
	started bool
	loaded  bool
	closed  bool

	cur record.Record
	err error

	rowFailures int
	failedParts []string

	log *slog.Logger
}

func newExplorer(ds *Dataset, parts []Partition) *Explorer {
	return &Explorer{
		ds:         ds,
		parts:      parts,
		restricted: parts != nil,
		log:        logging.Component("explorer"),
	}
}

// Next advances to the next extractable record. It loads partitions on
// demand, skips rows that fail extraction (counting them), and skips
// partitions whose raw table cannot be loaded (a partition-level
// failure never affects the partitions after it). It returns false once
// every partition is exhausted or the explorer is closed.
func (e *Explorer) Next() bool {
	if e.closed || e.err != nil {
		return false
	}

	if !e.started {
		e.started = true
		if !e.restricted {
			parts, err := e.ds.Partitions()
			if err != nil {
				e.err = err
				return false
			}
			e.parts = parts
		}
	}

	for {
		if !e.loaded {
			if e.pi >= len(e.parts) {
				// Exhausted: nothing left resident.
				e.ds.Release()
				return false
			}
			p := e.parts[e.pi]
			if err := e.ds.Load(p.Subset, p.Split); err != nil {
				e.log.Warn("partition skipped",
					"dataset", e.ds.Name(),
					"partition", p.Name(),
					"error", err)
				e.failedParts = append(e.failedParts, p.Name())
				e.pi++
				continue
			}
			e.loaded = true
			e.ri = 0
		}

		n, err := e.ds.RowCount()
		if err != nil {
			e.err = err
			return false
		}

		for e.ri < n {
			idx := e.ri
			e.ri++
			rec, err := e.ds.Row(idx)
			if err != nil {
				// Row already reported via the diagnostics sink.
				e.rowFailures++
				continue
			}
			e.cur = rec
			return true
		}

		// Partition exhausted; move on.
		e.loaded = false
		e.pi++
	}
}

// Record returns the record produced by the last successful Next.
func (e *Explorer) Record() record.Record {
	return e.cur
}

// Err returns the first fatal error encountered, if any. Row and
// partition failures are not fatal; see Failures and PartitionFailures.
func (e *Explorer) Err() error {
	return e.err
}

// Failures returns the number of rows skipped so far.
func (e *Explorer) Failures() int {
	return e.rowFailures
}

// PartitionFailures returns the number of partitions skipped so far.
func (e *Explorer) PartitionFailures() int {
	return len(e.failedParts)
}

// FailedPartitions returns the names of the partitions skipped so far,
// in encounter order.
func (e *Explorer) FailedPartitions() []string {
	return e.failedParts
}

// Close releases the active raw-row table. It is safe to call at any
// point, including mid-iteration and more than once.
func (e *Explorer) Close() error {
	if !e.closed {
		e.closed = true
		e.ds.Release()
	}
	return nil
}
