package kv

import (
	"encoding/binary"
	"fmt"

	"github.com/csv610/sophoset/internal/record"
)

// Record encoding format (binary, little-endian):
// - Key length (4 bytes) + Key string
// - Context length (4 bytes) + Context string
// - Question length (4 bytes) + Question string
// - Answer length (4 bytes) + Answer string
// - Explanation length (4 bytes) + Explanation string
// - Option count (4 bytes), then per option:
//   - Label length (4 bytes) + Label string
//   - Text length (4 bytes) + Text string
// - Image count (4 bytes), then per image:
//   - Path length (4 bytes) + Path string

// encodeRecord encodes a record into a binary format.
func encodeRecord(rec record.Record) []byte {
	// Estimate size: ~256 bytes per record average
	buf := make([]byte, 0, 256)

	buf = appendString(buf, rec.Key)
	buf = appendString(buf, rec.Context)
	buf = appendString(buf, rec.Question)
	buf = appendString(buf, rec.Answer)
	buf = appendString(buf, rec.Explanation)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Options)))
	for _, opt := range rec.Options {
		buf = appendString(buf, opt.Label)
		buf = appendString(buf, opt.Text)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Images)))
	for _, img := range rec.Images {
		buf = appendString(buf, img)
	}

	return buf
}

// decodeRecord decodes a binary format into a record.
func decodeRecord(data []byte) (record.Record, error) {
	var rec record.Record
	var err error
	offset := 0

	if rec.Key, offset, err = readString(data, offset); err != nil {
		return rec, fmt.Errorf("key: %w", err)
	}
	if rec.Context, offset, err = readString(data, offset); err != nil {
		return rec, fmt.Errorf("context: %w", err)
	}
	if rec.Question, offset, err = readString(data, offset); err != nil {
		return rec, fmt.Errorf("question: %w", err)
	}
	if rec.Answer, offset, err = readString(data, offset); err != nil {
		return rec, fmt.Errorf("answer: %w", err)
	}
	if rec.Explanation, offset, err = readString(data, offset); err != nil {
		return rec, fmt.Errorf("explanation: %w", err)
	}

	optionCount, offset, err := readCount(data, offset)
	if err != nil {
		return rec, fmt.Errorf("option count: %w", err)
	}
	if optionCount > 0 {
		rec.Options = make(record.Options, 0, optionCount)
		for i := 0; i < optionCount; i++ {
			var opt record.Option
			if opt.Label, offset, err = readString(data, offset); err != nil {
				return rec, fmt.Errorf("option %d label: %w", i, err)
			}
			if opt.Text, offset, err = readString(data, offset); err != nil {
				return rec, fmt.Errorf("option %d text: %w", i, err)
			}
			rec.Options = append(rec.Options, opt)
		}
	}

	imageCount, offset, err := readCount(data, offset)
	if err != nil {
		return rec, fmt.Errorf("image count: %w", err)
	}
	if imageCount > 0 {
		rec.Images = make([]string, 0, imageCount)
		for i := 0; i < imageCount; i++ {
			var img string
			if img, offset, err = readString(data, offset); err != nil {
				return rec, fmt.Errorf("image %d: %w", i, err)
			}
			rec.Images = append(rec.Images, img)
		}
	}

	if offset != len(data) {
		return rec, fmt.Errorf("%d trailing bytes after record", len(data)-offset)
	}

	return rec, nil
}

// appendString appends a length-prefixed string to the buffer.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// readString reads a length-prefixed string from the buffer.
func readString(data []byte, offset int) (string, int, error) {
	length, offset, err := readCount(data, offset)
	if err != nil {
		return "", offset, err
	}

	if offset+length > len(data) {
		return "", offset, fmt.Errorf("data too short for string content")
	}

	s := string(data[offset : offset+length])
	return s, offset + length, nil
}

// readCount reads a 4-byte count from the buffer.
func readCount(data []byte, offset int) (int, int, error) {
	if offset+4 > len(data) {
		return 0, offset, fmt.Errorf("data too short for length")
	}
	return int(binary.LittleEndian.Uint32(data[offset:])), offset + 4, nil
}
