// Package kv implements the ordered key-value record store: an
// append-only log with CRC-framed entries and an in-memory key index
// rebuilt by replaying the log on open.
package kv

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/csv610/sophoset/internal/errors"
	"github.com/csv610/sophoset/internal/logging"
	"github.com/csv610/sophoset/internal/record"
)

const logFileName = "records.log"

// Options configures the store.
type Options struct {
	// SyncWrites fsyncs the log after every put.
	SyncWrites bool

	// BufferSize is the size of the write buffer.
	// Default: 64KB
	BufferSize int
}

// DefaultOptions returns default store options.
func DefaultOptions() Options {
	return Options{
		SyncWrites: false,
		BufferSize: 64 * 1024,
	}
}

// Store is a durable record store keyed by hierarchical record keys.
// All operations are safe for concurrent use. A closed store rejects
// every operation with ErrStorageClosed.
type Store struct {
	mu sync.Mutex

	path   string
	file   *os.File
	writer *bufio.Writer
	size   int64
	index  map[string]entryLoc
	opts   Options
	closed bool
}

// Open opens the store in dir, creating the log file if absent and
// replaying it to rebuild the key index.
func Open(dir string, opts Options) (*Store, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}

	s := &Store{
		path:  path,
		file:  f,
		index: make(map[string]entryLoc),
		opts:  opts,
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}

	if info.Size() == 0 {
		if err := writeHeader(f); err != nil {
			f.Close()
			return nil, err
		}
		s.size = headerSize
	} else {
		size, err := replayLog(f, func(op byte, key string, valueOff int64, valueLen int) error {
			switch op {
			case opPut:
				s.index[key] = entryLoc{offset: valueOff, length: valueLen}
			case opDelete:
				delete(s.index, key)
			default:
				return errors.Wrapf(errors.ErrCorruptRecord, "unknown entry op %d", op)
			}
			return nil
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("replay log: %w", err)
		}
		s.size = size

		// Drop any torn tail so new entries start at a clean boundary.
		if size < info.Size() {
			logging.Component("kv").Warn("truncating torn log tail",
				"path", path, "valid_size", size, "file_size", info.Size())
			if err := f.Truncate(size); err != nil {
				f.Close()
				return nil, fmt.Errorf("truncate log: %w", err)
			}
		}
	}

	if _, err := f.Seek(s.size, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek log: %w", err)
	}
	s.writer = bufio.NewWriterSize(f, opts.BufferSize)

	return s, nil
}

// Put stores a record under key, replacing any existing value.
func (s *Store) Put(key string, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStorageClosed
	}

	value := encodeRecord(rec)
	payload := encodeEntry(opPut, key, value)

	if err := s.appendUnlocked(payload); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	s.index[key] = entryLoc{
		offset: s.size - int64(len(value)),
		length: len(value),
	}
	return nil
}

// Get returns the record stored under key, or ErrNotFound.
func (s *Store) Get(key string) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return record.Record{}, errors.ErrStorageClosed
	}

	loc, ok := s.index[key]
	if !ok {
		return record.Record{}, errors.Wrapf(errors.ErrNotFound, "key %q", key)
	}

	value := make([]byte, loc.length)
	if _, err := s.file.ReadAt(value, loc.offset); err != nil {
		return record.Record{}, fmt.Errorf("read %q: %w", key, err)
	}

	rec, err := decodeRecord(value)
	if err != nil {
		return record.Record{}, errors.Wrapf(errors.ErrCorruptRecord, "key %q: %v", key, err)
	}
	return rec, nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errors.ErrStorageClosed
	}
	_, ok := s.index[key]
	return ok, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStorageClosed
	}

	if _, ok := s.index[key]; !ok {
		return nil
	}

	payload := encodeEntry(opDelete, key, nil)
	if err := s.appendUnlocked(payload); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	delete(s.index, key)
	return nil
}

// Keys returns all stored keys in ascending lexical order.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.ErrStorageClosed
	}

	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.ErrStorageClosed
	}
	return len(s.index), nil
}

// Sync flushes buffered writes to disk.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStorageClosed
	}

	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close flushes and closes the store. Further operations return
// ErrStorageClosed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// appendUnlocked writes a framed entry and flushes so that reads see
// it immediately.
func (s *Store) appendUnlocked(payload []byte) error {
	if err := writeFrame(s.writer, payload); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	s.size += frameSize + int64(len(payload))

	if s.opts.SyncWrites {
		return s.file.Sync()
	}
	return nil
}
