package kv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/csv610/sophoset/internal/errors"
)

// Log file format:
//   - Header: 8 bytes magic + 4 bytes version
//   - Entries: [4 bytes length][4 bytes crc32][payload]
//
// Entry payload:
//   - Op (1 byte): 1 = put, 2 = delete
//   - Key length (4 bytes) + Key string
//   - Value bytes (put only, rest of payload)

const (
	logMagic   = 0x5351534B56000001 // "SQSKV" + version 1
	logVersion = 1
	headerSize = 12 // 8 bytes magic + 4 bytes version
	frameSize  = 8  // 4 bytes length + 4 bytes crc

	opPut    = byte(1)
	opDelete = byte(2)
)

// entryLoc records where an entry's value bytes live in the log file.
type entryLoc struct {
	offset int64
	length int
}

// encodeEntry builds an entry payload for the given op.
func encodeEntry(op byte, key string, value []byte) []byte {
	buf := make([]byte, 0, 1+4+len(key)+len(value))
	buf = append(buf, op)
	buf = appendString(buf, key)
	return append(buf, value...)
}

// writeHeader writes the log file header.
func writeHeader(f *os.File) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[0:8], logMagic)
	binary.LittleEndian.PutUint32(header[8:12], logVersion)

	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// readHeader validates the log file header.
func readHeader(r io.Reader) error {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != logMagic {
		return errors.Wrapf(errors.ErrCorruptRecord, "bad log magic %x", magic)
	}

	version := binary.LittleEndian.Uint32(header[8:12])
	if version != logVersion {
		return errors.Wrapf(errors.ErrCorruptRecord, "unsupported log version %d", version)
	}

	return nil
}

// writeFrame writes a single framed entry.
func writeFrame(w *bufio.Writer, payload []byte) error {
	var header [frameSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// replayFn is invoked for each valid entry during replay. valueOff and
// valueLen locate the value bytes within the log file.
type replayFn func(op byte, key string, valueOff int64, valueLen int) error

// replayLog scans all entries in the log, verifying checksums, and
// invokes fn for each. A truncated final entry is tolerated (a crash
// mid-append); corruption earlier in the log is not.
func replayLog(f *os.File, fn replayFn) (int64, error) {
	r := bufio.NewReaderSize(f, 256*1024)

	if err := readHeader(r); err != nil {
		return 0, err
	}

	offset := int64(headerSize)
	for {
		var frame [frameSize]byte
		if _, err := io.ReadFull(r, frame[:]); err != nil {
			if err == io.EOF {
				return offset, nil
			}
			if err == io.ErrUnexpectedEOF {
				// Torn frame header from an interrupted append.
				return offset, nil
			}
			return offset, fmt.Errorf("read frame at %d: %w", offset, err)
		}

		length := int(binary.LittleEndian.Uint32(frame[0:4]))
		expectedCRC := binary.LittleEndian.Uint32(frame[4:8])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// Torn payload from an interrupted append.
				return offset, nil
			}
			return offset, fmt.Errorf("read payload at %d: %w", offset, err)
		}

		if crc32.ChecksumIEEE(payload) != expectedCRC {
			return offset, errors.Wrapf(errors.ErrCorruptRecord,
				"checksum mismatch at offset %d", offset)
		}

		if len(payload) < 1 {
			return offset, errors.Wrapf(errors.ErrCorruptRecord,
				"empty entry at offset %d", offset)
		}

		op := payload[0]
		key, keyEnd, err := readString(payload, 1)
		if err != nil {
			return offset, errors.Wrapf(errors.ErrCorruptRecord,
				"entry key at offset %d: %v", offset, err)
		}

		valueOff := offset + frameSize + int64(keyEnd)
		valueLen := length - keyEnd
		if err := fn(op, key, valueOff, valueLen); err != nil {
			return offset, err
		}

		offset += frameSize + int64(length)
	}
}
