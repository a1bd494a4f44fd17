package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/csv610/sophoset/internal/record"
)

// jsonWriter writes records as a JSON array, one record per line. The
// record codec keeps option order, so exporting the same stream twice
// yields byte-identical output.
type jsonWriter struct {
	w     *bufio.Writer
	count int
}

func newJSONWriter(w io.Writer) *jsonWriter {
	return &jsonWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

func (j *jsonWriter) Write(rec record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if j.count == 0 {
		if _, err := j.w.WriteString("[\n  "); err != nil {
			return err
		}
	} else {
		if _, err := j.w.WriteString(",\n  "); err != nil {
			return err
		}
	}

	if _, err := j.w.Write(data); err != nil {
		return err
	}
	j.count++
	return nil
}

func (j *jsonWriter) Close() error {
	if j.count == 0 {
		if _, err := j.w.WriteString("[]\n"); err != nil {
			return err
		}
	} else {
		if _, err := j.w.WriteString("\n]\n"); err != nil {
			return err
		}
	}
	return j.w.Flush()
}
