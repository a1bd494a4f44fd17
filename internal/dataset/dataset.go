package dataset

import (
	"math/rand"

	"github.com/csv610/sophoset/internal/errors"
	"github.com/csv610/sophoset/internal/record"
	"github.com/csv610/sophoset/internal/validation"
)

// DefaultSubset is the subset name used when a source has none.
const DefaultSubset = "default"

// Dataset is a handle onto one source. It owns the memoized partition
// catalog and at most one loaded raw-row table (the active partition);
// loading a different partition discards the previous table.
//
// A Dataset performs no internal locking. Callers drive one handle from
// one goroutine at a time; independent handles are fully isolated.
type Dataset struct {
	name     string
	provider RowProvider
	mapper   Mapper
	diag     Diagnostics

	// Discovery results, computed lazily and cached for the lifetime
	// of the handle.
	partitions []Partition
	discovered bool

	// Active partition. Only one raw table is resident at a time.
	subset string
	split  string
	table  RowTable
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithDiagnostics sets the row-failure sink.
func WithDiagnostics(d Diagnostics) Option {
	return func(ds *Dataset) {
		if d != nil {
			ds.diag = d
		}
	}
}

// New creates a handle for one source. The mapper is supplied once, at
// construction time, and is the only source-specific seam.
func New(name string, provider RowProvider, mapper Mapper, opts ...Option) *Dataset {
	ds := &Dataset{
		name:     name,
		provider: provider,
		mapper:   mapper,
		diag:     DefaultDiagnostics(),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Name returns the source identifier.
func (d *Dataset) Name() string {
	return d.name
}

// Partitions enumerates the source's (subset, split) pairs and row
// counts. The result is computed on first access and memoized.
func (d *Dataset) Partitions() ([]Partition, error) {
	if d.discovered {
		return d.partitions, nil
	}

	parts, err := d.provider.ListPartitions(d.name)
	if err != nil {
		return nil, errors.Wrapf(err, "discover partitions of %s", d.name)
	}

	d.partitions = parts
	d.discovered = true
	return d.partitions, nil
}

// RowCountOf returns the discovered row count of a partition without
// loading it. O(1) after discovery.
func (d *Dataset) RowCountOf(subset, split string) (int, error) {
	parts, err := d.Partitions()
	if err != nil {
		return 0, err
	}
	for _, p := range parts {
		if p.Subset == subset && p.Split == split {
			return p.Rows, nil
		}
	}
	return 0, errors.NewUnknownPartition(subset, split, partitionNames(parts))
}

// Subsets returns the distinct subset names in discovery order.
func (d *Dataset) Subsets() ([]string, error) {
	parts, err := d.Partitions()
	if err != nil {
		return nil, err
	}
	var names []string
	seen := make(map[string]bool)
	for _, p := range parts {
		if !seen[p.Subset] {
			seen[p.Subset] = true
			names = append(names, p.Subset)
		}
	}
	return names, nil
}

// Splits returns the split names of one subset in discovery order.
func (d *Dataset) Splits(subset string) ([]string, error) {
	parts, err := d.Partitions()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range parts {
		if p.Subset == subset {
			names = append(names, p.Split)
		}
	}
	if names == nil {
		return nil, errors.NewUnknownPartition(subset, "*", partitionNames(parts))
	}
	return names, nil
}

// Load makes (subset, split) the active partition, discarding any
// previously loaded raw table. A request that does not match discovery
// results fails with an unknown-partition error listing the valid pairs.
func (d *Dataset) Load(subset, split string) error {
	if err := validation.ValidatePartitionName(subset); err != nil {
		return errors.NewInvalidPartitionName("subset", subset, err.Error())
	}
	if err := validation.ValidatePartitionName(split); err != nil {
		return errors.NewInvalidPartitionName("split", split, err.Error())
	}

	parts, err := d.Partitions()
	if err != nil {
		return err
	}
	if !containsPartition(parts, subset, split) {
		return errors.NewUnknownPartition(subset, split, partitionNames(parts))
	}

	table, err := d.provider.LoadRows(d.name, subset, split)
	if err != nil {
		return errors.Wrapf(err, "load %s %s/%s", d.name, subset, split)
	}

	// The previous table, if any, is released here: one resident
	// raw-row table per handle is a deliberate memory bound.
	d.subset = subset
	d.split = split
	d.table = table
	return nil
}

// Release discards the active raw-row table.
func (d *Dataset) Release() {
	d.subset = ""
	d.split = ""
	d.table = nil
}

// Loaded reports whether a partition is currently active.
func (d *Dataset) Loaded() bool {
	return d.table != nil
}

// Active returns the active (subset, split) pair.
func (d *Dataset) Active() (subset, split string) {
	return d.subset, d.split
}

// RowCount returns the row count of the active partition.
func (d *Dataset) RowCount() (int, error) {
	if d.table == nil {
		return 0, errors.ErrNoTableLoaded
	}
	return d.table.Len(), nil
}

// Key builds the address of a row in the active partition.
func (d *Dataset) Key(index int) (string, error) {
	if d.table == nil {
		return "", errors.ErrNoTableLoaded
	}
	return record.BuildKey(d.subset, d.split, index)
}

// Row extracts the canonical record at index from the active partition.
// A row-level failure is returned as an error; it does not disturb the
// handle's state.
func (d *Dataset) Row(index int) (record.Record, error) {
	if d.table == nil {
		return record.Record{}, errors.ErrNoTableLoaded
	}
	if index < 0 || index >= d.table.Len() {
		return record.Record{}, errors.Wrapf(errors.ErrIndexOutOfRange,
			"index %d, partition has %d rows", index, d.table.Len())
	}
	return d.extract(d.table.Row(index), index)
}

// RandomRowIndex returns a uniformly random valid row index of the
// active partition.
func (d *Dataset) RandomRowIndex() (int, error) {
	if d.table == nil {
		return 0, errors.ErrNoTableLoaded
	}
	return rand.Intn(d.table.Len()), nil
}

// ClampIndex clamps an index into the active partition's valid range.
func (d *Dataset) ClampIndex(index int) (int, error) {
	if d.table == nil {
		return 0, errors.ErrNoTableLoaded
	}
	if index < 0 {
		return 0, nil
	}
	if max := d.table.Len() - 1; index > max {
		return max, nil
	}
	return index, nil
}

// Samples extracts a selection of rows from the active partition. The
// selection is produced by SelectIndices; rows that fail extraction are
// skipped and counted, never aborting the partition.
func (d *Dataset) Samples(opts SampleOptions) ([]record.Record, int, error) {
	if d.table == nil {
		return nil, 0, errors.ErrNoTableLoaded
	}

	indices := SelectIndices(d.table.Len(), opts)

	records := make([]record.Record, 0, len(indices))
	failures := 0
	for _, idx := range indices {
		rec, err := d.extract(d.table.Row(idx), idx)
		if err != nil {
			failures++
			continue
		}
		records = append(records, rec)
	}

	return records, failures, nil
}

// Stream returns a fresh explorer over every partition of the source in
// discovery order. Each call re-enumerates from the start.
func (d *Dataset) Stream() *Explorer {
	return newExplorer(d, nil)
}

// StreamPartitions returns a fresh explorer restricted to the given
// partitions, in the given order.
func (d *Dataset) StreamPartitions(parts []Partition) *Explorer {
	return newExplorer(d, parts)
}

func containsPartition(parts []Partition, subset, split string) bool {
	for _, p := range parts {
		if p.Subset == subset && p.Split == split {
			return true
		}
	}
	return false
}

func partitionNames(parts []Partition) []string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.Name()
	}
	return names
}
