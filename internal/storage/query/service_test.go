package query

import (
	"context"
	"testing"

	"github.com/csv610/sophoset/internal/dataset"
	"github.com/csv610/sophoset/internal/storage/config"
	"github.com/csv610/sophoset/internal/storage/export"
)

func TestService_New(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
}

func TestService_ExecuteSQL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	results, err := svc.ExecuteSQL(context.Background(), "SELECT 1 AS value")
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	stats := svc.Stats()
	if stats.QueriesExecuted != 1 {
		t.Errorf("expected 1 query executed, got %d", stats.QueriesExecuted)
	}
}

func TestService_Lookup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	provider := dataset.NewMemoryProvider()
	provider.Add("quiz", "arith", "test", []dataset.Raw{
		{"question": "what is 2+2", "choices": []any{"3", "4"}, "answer": float64(1)},
	})

	e := export.New(cfg.ExportDir(), export.Options{
		Format:           export.FormatParquet,
		Compression:      "zstd",
		CompressionLevel: 3,
		GroupByPartition: true,
		Workers:          1,
	})
	if _, err := e.Export(context.Background(), func() *dataset.Dataset {
		return dataset.New("quiz", provider, dataset.MapMMLU)
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	rec, err := svc.Lookup(context.Background(), "arith/test/0")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if rec.Question != "what is 2+2" {
		t.Errorf("Question = %q", rec.Question)
	}
	if rec.Answer != "B" {
		t.Errorf("Answer = %q, want B", rec.Answer)
	}

	// The option set survives the round trip through parquet and SQL.
	if len(rec.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(rec.Options))
	}
	if text, ok := rec.Options.Get("B"); !ok || text != "4" {
		t.Errorf("option B = %q (present=%v), want 4", text, ok)
	}

	if _, err := svc.Lookup(context.Background(), "arith/test/99"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestService_PartitionCountsEmpty(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	// No export files yet: an empty result, not an error.
	counts, err := svc.PartitionCounts(context.Background())
	if err != nil {
		t.Fatalf("PartitionCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("counts = %v, want empty", counts)
	}
}
