package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/csv610/sophoset/internal/record"
)

// OptionRow is one answer option in Parquet form.
type OptionRow struct {
	Label string `parquet:"label,zstd"`
	Text  string `parquet:"text,zstd"`
}

// RecordRow is a record in Parquet form. Subset, split and ordinal are
// denormalized from the key so query engines can group and filter on
// them without string parsing.
type RecordRow struct {
	Key         string      `parquet:"key,zstd"`
	Subset      string      `parquet:"subset,zstd"`
	Split       string      `parquet:"split,zstd"`
	Ordinal     int32       `parquet:"ordinal"`
	Context     string      `parquet:"context,optional,zstd"`
	Question    string      `parquet:"question,zstd"`
	Images      []string    `parquet:"images,list,optional"`
	Options     []OptionRow `parquet:"options,list,optional"`
	Answer      string      `parquet:"answer,zstd"`
	Explanation string      `parquet:"explanation,optional,zstd"`
}

// RecordToRow converts a record to its Parquet form.
func RecordToRow(rec record.Record) RecordRow {
	row := RecordRow{
		Key:         rec.Key,
		Context:     rec.Context,
		Question:    rec.Question,
		Images:      rec.Images,
		Answer:      rec.Answer,
		Explanation: rec.Explanation,
	}

	if subset, split, index, err := record.ParseKey(rec.Key); err == nil {
		row.Subset = subset
		row.Split = split
		row.Ordinal = int32(index)
	}

	if len(rec.Options) > 0 {
		row.Options = make([]OptionRow, len(rec.Options))
		for i, opt := range rec.Options {
			row.Options[i] = OptionRow{Label: opt.Label, Text: opt.Text}
		}
	}

	return row
}

// RowToRecord converts a Parquet row back to a record.
func RowToRecord(row RecordRow) record.Record {
	rec := record.Record{
		Key:         row.Key,
		Context:     row.Context,
		Question:    row.Question,
		Images:      row.Images,
		Answer:      row.Answer,
		Explanation: row.Explanation,
	}

	if len(row.Options) > 0 {
		rec.Options = make(record.Options, len(row.Options))
		for i, opt := range row.Options {
			rec.Options[i] = record.Option{Label: opt.Label, Text: opt.Text}
		}
	}

	return rec
}

// parquetWriter writes records to a Parquet file.
type parquetWriter struct {
	writer *parquet.GenericWriter[RecordRow]
}

func newParquetWriter(w io.Writer, compression string, level int) (*parquetWriter, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}

	return &parquetWriter{
		writer: parquet.NewGenericWriter[RecordRow](w, parquet.Compression(codec)),
	}, nil
}

func (p *parquetWriter) Write(rec record.Record) error {
	rows := [1]RecordRow{RecordToRow(rec)}
	if _, err := p.writer.Write(rows[:]); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

func (p *parquetWriter) Close() error {
	return p.writer.Close()
}

// ReadParquet reads all records back from a Parquet export file.
func ReadParquet(r io.ReaderAt, size int64) ([]record.Record, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[RecordRow](pf)
	defer reader.Close()

	records := make([]record.Record, 0, pf.NumRows())
	rows := make([]RecordRow, 1024)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			records = append(records, RowToRecord(rows[i]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	}

	return records, nil
}

func compressionCodec(name string) (compress.Codec, error) {
	switch name {
	case "snappy":
		return &parquet.Snappy, nil
	case "zstd", "":
		return &parquet.Zstd, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}
