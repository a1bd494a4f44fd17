// sophoset normalizes question-answer datasets into canonical records
// and manages their exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/csv610/sophoset/internal/dataset"
	"github.com/csv610/sophoset/internal/logging"
	"github.com/csv610/sophoset/internal/storage/config"
	"github.com/csv610/sophoset/internal/storage/export"
	"github.com/csv610/sophoset/internal/storage/kv"
	"github.com/csv610/sophoset/internal/storage/query"
	"github.com/csv610/sophoset/internal/storage/stats"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: sophoset [flags] <command> [args]

Commands:
  export <source>   normalize a raw dataset and export it
  ingest <source>   normalize a raw dataset into the record store
  inspect           browse the record store interactively
  query <sql>       run SQL over exported parquet files
  list              list registered sources

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	rawDir := flag.String("raw", "raw", "raw dataset directory")
	format := flag.String("format", "", "export format: json, parquet (overrides config)")
	workers := flag.Int("workers", 0, "export workers (overrides config)")
	flat := flag.Bool("flat", false, "single combined export file instead of per-partition files")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "JSON log output")
	flag.Usage = usage
	flag.Parse()

	logging.Init(parseLevel(*logLevel), *logJSON)

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			fatal("load config: %v", err)
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *format != "" {
		cfg.Export.Format = *format
	}
	if *workers > 0 {
		cfg.Export.Workers = *workers
	}
	if *flat {
		cfg.Export.GroupByPartition = false
	}
	if err := cfg.Validate(); err != nil {
		fatal("config: %v", err)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	registry := dataset.DefaultRegistry()

	switch cmd := flag.Arg(0); cmd {
	case "export":
		if flag.NArg() < 2 {
			fatal("export: source name required")
		}
		if err := runExport(ctx, cfg, registry, *rawDir, flag.Arg(1)); err != nil {
			fatal("export: %v", err)
		}
	case "ingest":
		if flag.NArg() < 2 {
			fatal("ingest: source name required")
		}
		if err := runIngest(cfg, registry, *rawDir, flag.Arg(1)); err != nil {
			fatal("ingest: %v", err)
		}
	case "inspect":
		if err := runInspect(cfg); err != nil {
			fatal("inspect: %v", err)
		}
	case "query":
		if flag.NArg() < 2 {
			fatal("query: SQL statement required")
		}
		if err := runQuery(ctx, cfg, flag.Arg(1)); err != nil {
			fatal("query: %v", err)
		}
	case "list":
		for _, name := range registry.Names() {
			src, _ := registry.Lookup(name)
			kind := "text"
			if src.Vision {
				kind = "vision"
			}
			fmt.Printf("%-12s %-28s %s\n", name, src.Hub, kind)
		}
	default:
		fatal("unknown command %q", cmd)
	}
}

func runExport(ctx context.Context, cfg *config.Config, registry *dataset.Registry, rawDir, source string) error {
	src, err := registry.Lookup(source)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	fmtOpt, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	opts := export.Options{
		Format:           fmtOpt,
		Compression:      cfg.Export.Compression,
		CompressionLevel: cfg.Export.CompressionLevel,
		GroupByPartition: cfg.Export.GroupByPartition,
		Workers:          cfg.Export.Workers,
	}

	var collector *stats.Collector
	if cfg.Stats.Enabled {
		collector, err = stats.NewCollector(cfg.Stats.Accuracy)
		if err != nil {
			return err
		}
		opts.Observer = collector
	}

	provider := dataset.NewDirProvider(rawDir)
	exporter := export.New(cfg.ExportDir(), opts)

	summary, err := exporter.Export(ctx, func() *dataset.Dataset {
		return dataset.New(src.Hub, provider, src.Mapper)
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported %d records from %d partitions (%d row failures)\n",
		summary.Records, summary.Partitions, summary.Failures)
	for _, f := range summary.Files {
		fmt.Printf("  %-24s %8d records  %s\n", f.Partition, f.Records, f.Path)
	}
	for _, p := range summary.FailedPartitions {
		fmt.Printf("  %-24s FAILED (partition not loadable)\n", p)
	}

	if collector != nil {
		printStats(collector.Summary())
	}
	return nil
}

func runIngest(cfg *config.Config, registry *dataset.Registry, rawDir, source string) error {
	src, err := registry.Lookup(source)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := kv.Open(cfg.StoreDir(), kv.Options{SyncWrites: cfg.Store.SyncWrites})
	if err != nil {
		return err
	}
	defer store.Close()

	provider := dataset.NewDirProvider(rawDir)
	ds := dataset.New(src.Hub, provider, src.Mapper)

	stream := ds.Stream()
	defer stream.Close()

	stored := 0
	for stream.Next() {
		rec := stream.Record()
		if err := store.Put(rec.Key, rec); err != nil {
			return err
		}
		stored++
	}
	if err := stream.Err(); err != nil {
		return err
	}
	if err := store.Sync(); err != nil {
		return err
	}

	fmt.Printf("stored %d records (%d row failures)\n", stored, stream.Failures())
	return nil
}

func runQuery(ctx context.Context, cfg *config.Config, sql string) error {
	svc, err := query.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Query.Timeout)
	defer cancel()

	rows, err := svc.ExecuteSQL(ctx, sql)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%v\n", row)
	}
	fmt.Printf("%d rows\n", len(rows))
	return nil
}

func printStats(s stats.Summary) {
	fmt.Printf("corpus: %d records, %d multiple-choice, %d with images, %d unanswerable\n",
		s.Total, s.MultipleChoice, s.WithImages, s.NAAnswers)
	fmt.Printf("question length p50=%.0f p90=%.0f p99=%.0f\n",
		s.QuestionLength.P50, s.QuestionLength.P90, s.QuestionLength.P99)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sophoset: "+format+"\n", args...)
	os.Exit(1)
}
