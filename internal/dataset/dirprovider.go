package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/csv610/sophoset/internal/errors"
)

// DirProvider serves raw rows from a local directory tree, standing in
// for the remote dataset hub. The expected layout is
//
//	<root>/<source>/<subset>/<split>.json
//
// where each split file holds a JSON array of row objects. Sources with
// no subsets place split files under <root>/<source>/default/.
//
// Partition order is sorted by subset name, then split name, so
// discovery is stable across runs. DirProvider is safe for concurrent
// use: it holds no mutable state.
type DirProvider struct {
	root string
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{root: dir}
}

// ListPartitions implements RowProvider by walking the source's
// directory. The row count requires decoding each split file once;
// callers memoize the result.
func (p *DirProvider) ListPartitions(source string) ([]Partition, error) {
	sourceDir := filepath.Join(p.root, sourcePath(source))

	subsets, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnknownPartition, "source %s: %v", source, err)
	}

	var parts []Partition
	for _, subset := range subsets {
		if !subset.IsDir() {
			continue
		}
		splits, err := os.ReadDir(filepath.Join(sourceDir, subset.Name()))
		if err != nil {
			continue
		}
		for _, split := range splits {
			name := split.Name()
			if split.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			splitName := strings.TrimSuffix(name, ".json")
			rows, err := p.readRows(source, subset.Name(), splitName)
			if err != nil {
				continue
			}
			parts = append(parts, Partition{
				Subset: subset.Name(),
				Split:  splitName,
				Rows:   len(rows),
			})
		}
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Subset != parts[j].Subset {
			return parts[i].Subset < parts[j].Subset
		}
		return parts[i].Split < parts[j].Split
	})

	if len(parts) == 0 {
		return nil, errors.Wrapf(errors.ErrUnknownPartition, "source %s has no partitions", source)
	}
	return parts, nil
}

// LoadRows implements RowProvider.
func (p *DirProvider) LoadRows(source, subset, split string) (RowTable, error) {
	rows, err := p.readRows(source, subset, split)
	if err != nil {
		return nil, err
	}
	return sliceTable(rows), nil
}

func (p *DirProvider) readRows(source, subset, split string) ([]Raw, error) {
	path := filepath.Join(p.root, sourcePath(source), subset, split+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewUnknownPartition(subset, split, nil)
	}

	var rows []Raw
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rows, nil
}

// sourcePath flattens hub identifiers like "cais/mmlu" into a single
// directory name, the same way the original exporter named its files.
func sourcePath(source string) string {
	return strings.ReplaceAll(source, "/", "_")
}
