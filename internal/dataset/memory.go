package dataset

import (
	"github.com/csv610/sophoset/internal/errors"
)

// MemoryProvider is an in-memory RowProvider, used by tests and small
// fixed corpora. Partitions are enumerated in insertion order.
type MemoryProvider struct {
	sources map[string]*memorySource
}

type memorySource struct {
	order []Partition
	rows  map[string][]Raw // keyed by "subset/split"
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{sources: make(map[string]*memorySource)}
}

// Add registers one partition's rows for a source, replacing any
// previous rows for the same (subset, split).
func (p *MemoryProvider) Add(source, subset, split string, rows []Raw) {
	src := p.sources[source]
	if src == nil {
		src = &memorySource{rows: make(map[string][]Raw)}
		p.sources[source] = src
	}

	name := subset + "/" + split
	if _, exists := src.rows[name]; !exists {
		src.order = append(src.order, Partition{Subset: subset, Split: split, Rows: len(rows)})
	} else {
		for i := range src.order {
			if src.order[i].Name() == name {
				src.order[i].Rows = len(rows)
			}
		}
	}
	src.rows[name] = rows
}

// ListPartitions implements RowProvider.
func (p *MemoryProvider) ListPartitions(source string) ([]Partition, error) {
	src := p.sources[source]
	if src == nil {
		return nil, errors.NewUnknownPartition("", "", nil)
	}
	parts := make([]Partition, len(src.order))
	copy(parts, src.order)
	return parts, nil
}

// LoadRows implements RowProvider.
func (p *MemoryProvider) LoadRows(source, subset, split string) (RowTable, error) {
	src := p.sources[source]
	if src == nil {
		return nil, errors.NewUnknownPartition(subset, split, nil)
	}
	rows, ok := src.rows[subset+"/"+split]
	if !ok {
		return nil, errors.NewUnknownPartition(subset, split, partitionNames(src.order))
	}
	return sliceTable(rows), nil
}

// sliceTable adapts a row slice to the RowTable interface.
type sliceTable []Raw

func (t sliceTable) Len() int        { return len(t) }
func (t sliceTable) Row(i int) Raw   { return t[i] }
