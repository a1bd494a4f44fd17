// Package export writes the canonical record stream out as flat files,
// either one file per partition or a single combined file, in JSON or
// Parquet form.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/csv610/sophoset/internal/dataset"
	"github.com/csv610/sophoset/internal/logging"
	"github.com/csv610/sophoset/internal/record"
)

// Stream yields records one at a time. *dataset.Explorer satisfies it.
type Stream interface {
	Next() bool
	Record() record.Record
	Err() error
	Failures() int
	FailedPartitions() []string
	Close() error
}

// Format is an export file format.
type Format int

const (
	FormatJSON Format = iota
	FormatParquet
)

// ParseFormat parses a format string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json", "":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return FormatJSON, fmt.Errorf("unknown export format %q", s)
	}
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == FormatParquet {
		return ".parquet"
	}
	return ".json"
}

// Observer is notified of every exported record. Used to feed corpus
// statistics without a second pass.
type Observer interface {
	Observe(rec record.Record)
}

// Options configures an export run.
type Options struct {
	// Format is the output file format.
	Format Format

	// Compression is the Parquet compression algorithm: snappy, zstd, none.
	Compression string

	// CompressionLevel for algorithms that support it (zstd: 1-22).
	CompressionLevel int

	// GroupByPartition writes one file per partition instead of a
	// single combined file.
	GroupByPartition bool

	// Workers is the number of parallel partition export workers.
	Workers int

	// Observer, if set, sees every exported record.
	Observer Observer
}

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{
		Format:           FormatJSON,
		Compression:      "zstd",
		CompressionLevel: 3,
		GroupByPartition: true,
		Workers:          4,
	}
}

// FileResult describes one written export file.
type FileResult struct {
	Path      string
	Partition string
	Records   int
	Failures  int
}

// Summary describes a completed export run.
type Summary struct {
	Records    int
	Partitions int
	Failures   int
	Files      []FileResult

	// FailedPartitions names the partitions whose raw tables could not
	// be loaded. In grouped mode no file is written for them.
	FailedPartitions []string
}

// HandleFactory returns a fresh dataset handle. Each export worker
// gets its own handle so partitions can be exported in parallel.
type HandleFactory func() *dataset.Dataset

// recordWriter is the per-format sink.
type recordWriter interface {
	Write(rec record.Record) error
	Close() error
}

// Exporter writes record streams to a directory.
type Exporter struct {
	dir  string
	opts Options
	log  *slog.Logger
}

// New creates an exporter writing into dir.
func New(dir string, opts Options) *Exporter {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	return &Exporter{
		dir:  dir,
		opts: opts,
		log:  logging.Component("export"),
	}
}

// Export streams every partition of the dataset to disk and returns a
// summary. With GroupByPartition set, partitions are written to
// separate files by a pool of workers; otherwise all records go to a
// single combined file in partition order.
func (e *Exporter) Export(ctx context.Context, newHandle HandleFactory) (*Summary, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	ds := newHandle()
	parts, err := ds.Partitions()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	ds.Release()

	if !e.opts.GroupByPartition {
		return e.exportCombined(ds, parts)
	}

	var (
		mu      sync.Mutex
		results []FileResult
		failed  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, part := range parts {
		part := part
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			wds := newHandle()
			stream := wds.StreamPartitions([]dataset.Partition{part})
			path := filepath.Join(e.dir, partitionFileName(part)+e.opts.Format.Ext())

			res, lost, err := e.writeStream(stream, path, false)
			if err != nil {
				return fmt.Errorf("export partition %s: %w", part.Name(), err)
			}
			if len(lost) > 0 {
				// The partition's raw table never loaded; no file was
				// written for it.
				e.log.Warn("partition not exported",
					"partition", part.Name(), "path", path)
				mu.Lock()
				failed = append(failed, part.Name())
				mu.Unlock()
				return nil
			}
			res.Partition = part.Name()

			e.log.Info("partition exported",
				"partition", part.Name(), "records", res.Records,
				"failures", res.Failures, "path", path)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Partition < results[j].Partition
	})
	sort.Strings(failed)

	return summarize(results, len(parts), failed), nil
}

// exportCombined writes all partitions to one file in partition order.
func (e *Exporter) exportCombined(ds *dataset.Dataset, parts []dataset.Partition) (*Summary, error) {
	stream := ds.StreamPartitions(parts)
	path := filepath.Join(e.dir, "records"+e.opts.Format.Ext())

	// A combined file keeps the records of the partitions that did
	// load; the lost ones are reported in the summary.
	res, lost, err := e.writeStream(stream, path, true)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	e.log.Info("export complete",
		"records", res.Records, "failures", res.Failures,
		"partitions_failed", len(lost), "path", path)

	return summarize([]FileResult{res}, len(parts), lost), nil
}

// writeStream drains a stream into one file. The file is written to a
// temporary name and renamed into place so a failed export never
// leaves a partial file behind. When keepOnLoss is false and any
// partition in the stream failed to load, the file is discarded
// instead of renamed; the lost partition names are returned either
// way.
func (e *Exporter) writeStream(stream Stream, path string, keepOnLoss bool) (FileResult, []string, error) {
	defer stream.Close()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return FileResult{}, nil, fmt.Errorf("create %s: %w", tmp, err)
	}

	w, err := e.newWriter(f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return FileResult{}, nil, err
	}

	records := 0
	for stream.Next() {
		rec := stream.Record()
		if err := w.Write(rec); err != nil {
			w.Close()
			f.Close()
			os.Remove(tmp)
			return FileResult{}, nil, fmt.Errorf("write record %s: %w", rec.Key, err)
		}
		if e.opts.Observer != nil {
			e.opts.Observer.Observe(rec)
		}
		records++
	}

	if err := stream.Err(); err != nil {
		w.Close()
		f.Close()
		os.Remove(tmp)
		return FileResult{}, nil, err
	}

	lost := stream.FailedPartitions()
	if len(lost) > 0 && !keepOnLoss {
		w.Close()
		f.Close()
		os.Remove(tmp)
		return FileResult{}, lost, nil
	}

	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return FileResult{}, nil, fmt.Errorf("finalize %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return FileResult{}, nil, fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return FileResult{}, nil, fmt.Errorf("rename %s: %w", tmp, err)
	}

	return FileResult{
		Path:     path,
		Records:  records,
		Failures: stream.Failures(),
	}, lost, nil
}

func (e *Exporter) newWriter(f *os.File) (recordWriter, error) {
	switch e.opts.Format {
	case FormatParquet:
		return newParquetWriter(f, e.opts.Compression, e.opts.CompressionLevel)
	default:
		return newJSONWriter(f), nil
	}
}

func summarize(results []FileResult, partitions int, failed []string) *Summary {
	s := &Summary{
		Partitions:       partitions,
		Files:            results,
		FailedPartitions: failed,
	}
	for _, r := range results {
		s.Records += r.Records
		s.Failures += r.Failures
	}
	return s
}

// partitionFileName builds a filesystem-safe file stem for a
// partition. Anything outside [a-zA-Z0-9._-] becomes an underscore.
func partitionFileName(p dataset.Partition) string {
	return sanitize(p.Subset) + "_" + sanitize(p.Split)
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
