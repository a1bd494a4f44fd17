package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/csv610/sophoset/internal/dataset"
	"github.com/csv610/sophoset/internal/record"
)

func testDataset(t *testing.T) HandleFactory {
	t.Helper()

	provider := dataset.NewMemoryProvider()
	for i, part := range []struct{ subset, split string }{
		{"arith", "test"},
		{"geo", "train"},
	} {
		rows := make([]dataset.Raw, 3)
		for j := range rows {
			rows[j] = dataset.Raw{
				"question": fmt.Sprintf("q-%d-%d", i, j),
				"choices":  []any{"yes", "no"},
				"answer":   float64(j % 2),
			}
		}
		provider.Add("quiz", part.subset, part.split, rows)
	}

	return func() *dataset.Dataset {
		return dataset.New("quiz", provider, dataset.MapMMLU)
	}
}

func TestExportGrouped(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, Options{Format: FormatJSON, GroupByPartition: true, Workers: 2})

	summary, err := e.Export(context.Background(), testDataset(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if summary.Records != 6 {
		t.Errorf("Records = %d, want 6", summary.Records)
	}
	if summary.Partitions != 2 {
		t.Errorf("Partitions = %d, want 2", summary.Partitions)
	}
	if summary.Failures != 0 {
		t.Errorf("Failures = %d, want 0", summary.Failures)
	}

	for _, name := range []string{"arith_test.json", "geo_train.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected export file %s: %v", name, err)
		}
	}

	// No temporary files may survive a successful export.
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestExportCombinedDeterministic(t *testing.T) {
	factory := testDataset(t)

	run := func() []byte {
		dir := t.TempDir()
		e := New(dir, Options{Format: FormatJSON, GroupByPartition: false})
		if _, err := e.Export(context.Background(), factory); err != nil {
			t.Fatalf("Export: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "records.json"))
		if err != nil {
			t.Fatalf("read export: %v", err)
		}
		return data
	}

	first := run()
	second := run()
	if string(first) != string(second) {
		t.Error("two exports of the same dataset differ")
	}
}

func TestExportCountsRowFailures(t *testing.T) {
	provider := dataset.NewMemoryProvider()
	rows := make([]dataset.Raw, 10)
	for i := range rows {
		rows[i] = dataset.Raw{"question": fmt.Sprintf("q%d", i), "answer": "42"}
	}
	delete(rows[5], "question") // mapper fails on this row
	provider.Add("quiz", "default", "test", rows)

	dir := t.TempDir()
	e := New(dir, Options{Format: FormatJSON, GroupByPartition: false})

	summary, err := e.Export(context.Background(), func() *dataset.Dataset {
		return dataset.New("quiz", provider, dataset.MapGSM8K)
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if summary.Records != 9 {
		t.Errorf("Records = %d, want 9", summary.Records)
	}
	if summary.Failures != 1 {
		t.Errorf("Failures = %d, want 1", summary.Failures)
	}
}

type brittleProvider struct {
	*dataset.MemoryProvider
	broken map[string]bool
}

func (p *brittleProvider) LoadRows(source, subset, split string) (dataset.RowTable, error) {
	if p.broken[subset+"/"+split] {
		return nil, fmt.Errorf("synthetic load failure")
	}
	return p.MemoryProvider.LoadRows(source, subset, split)
}

func brittleDataset(t *testing.T) HandleFactory {
	t.Helper()

	mem := dataset.NewMemoryProvider()
	for _, part := range []struct{ subset, split string }{
		{"a", "test"},
		{"b", "test"},
		{"c", "test"},
	} {
		mem.Add("quiz", part.subset, part.split, []dataset.Raw{
			{"question": "q", "choices": []any{"yes", "no"}, "answer": float64(0)},
		})
	}
	provider := &brittleProvider{MemoryProvider: mem, broken: map[string]bool{"b/test": true}}

	return func() *dataset.Dataset {
		return dataset.New("quiz", provider, dataset.MapMMLU)
	}
}

func TestExportGroupedUnloadablePartition(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, Options{Format: FormatJSON, GroupByPartition: true, Workers: 2})

	summary, err := e.Export(context.Background(), brittleDataset(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if !reflect.DeepEqual(summary.FailedPartitions, []string{"b/test"}) {
		t.Errorf("FailedPartitions = %v, want [b/test]", summary.FailedPartitions)
	}
	if summary.Records != 2 {
		t.Errorf("Records = %d, want 2", summary.Records)
	}
	if len(summary.Files) != 2 {
		t.Errorf("Files = %d, want 2", len(summary.Files))
	}

	// The failed partition must not leave a complete-looking empty
	// file, or a temp file, behind.
	if _, err := os.Stat(filepath.Join(dir, "b_test.json")); !os.IsNotExist(err) {
		t.Errorf("b_test.json exists for a partition that never loaded (stat err = %v)", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}

	for _, name := range []string{"a_test.json", "c_test.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected export file %s: %v", name, err)
		}
	}
}

func TestExportCombinedUnloadablePartition(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, Options{Format: FormatJSON, GroupByPartition: false})

	summary, err := e.Export(context.Background(), brittleDataset(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Combined mode keeps the partitions that loaded and reports the
	// one that did not.
	if summary.Records != 2 {
		t.Errorf("Records = %d, want 2", summary.Records)
	}
	if !reflect.DeepEqual(summary.FailedPartitions, []string{"b/test"}) {
		t.Errorf("FailedPartitions = %v, want [b/test]", summary.FailedPartitions)
	}
	if _, err := os.Stat(filepath.Join(dir, "records.json")); err != nil {
		t.Errorf("combined file missing: %v", err)
	}
}

type countingObserver struct{ n int }

func (c *countingObserver) Observe(_ record.Record) { c.n++ }

func TestExportObserver(t *testing.T) {
	obs := &countingObserver{}
	dir := t.TempDir()
	e := New(dir, Options{Format: FormatJSON, GroupByPartition: true, Workers: 1, Observer: obs})

	summary, err := e.Export(context.Background(), testDataset(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if obs.n != summary.Records {
		t.Errorf("observer saw %d records, summary has %d", obs.n, summary.Records)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, Options{Format: FormatParquet, Compression: "zstd", CompressionLevel: 3, GroupByPartition: false})

	summary, err := e.Export(context.Background(), testDataset(t))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	path := filepath.Join(dir, "records.parquet")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("stat export: %v", err)
	}

	records, err := ReadParquet(f, info.Size())
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(records) != summary.Records {
		t.Errorf("read %d records back, exported %d", len(records), summary.Records)
	}

	for _, rec := range records {
		if rec.Key == "" || rec.Question == "" {
			t.Errorf("record %+v lost fields through parquet", rec)
		}
		if len(rec.Options) != 2 {
			t.Errorf("record %s: got %d options, want 2", rec.Key, len(rec.Options))
		}
	}
}
