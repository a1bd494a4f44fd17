package record

import (
	"strconv"
	"strings"

	"github.com/csv610/sophoset/internal/errors"
)

// KeySeparator joins the subset, split, and row index of a key.
const KeySeparator = "/"

// BuildKey builds the hierarchical address "<subset>/<split>/<index>"
// identifying a record's origin. Subset and split must not contain the
// separator character; the index is a non-negative integer rendered
// without leading zeros.
//
// Keys sort lexicographically within a partition only up to 9 digits;
// callers requiring numeric ordering beyond that range must ParseKey and
// compare the integer.
func BuildKey(subset, split string, index int) (string, error) {
	if strings.Contains(subset, KeySeparator) {
		return "", errors.NewInvalidPartitionName("subset", subset, "contains separator")
	}
	if subset == "" {
		return "", errors.NewInvalidPartitionName("subset", subset, "empty")
	}
	if strings.Contains(split, KeySeparator) {
		return "", errors.NewInvalidPartitionName("split", split, "contains separator")
	}
	if split == "" {
		return "", errors.NewInvalidPartitionName("split", split, "empty")
	}
	if index < 0 {
		return "", errors.Wrapf(errors.ErrInvalidKey, "negative index %d", index)
	}
	return subset + KeySeparator + split + KeySeparator + strconv.Itoa(index), nil
}

// ParseKey is the total inverse of BuildKey for all keys BuildKey
// produces: it splits a key back into (subset, split, index).
func ParseKey(key string) (subset, split string, index int, err error) {
	first := strings.Index(key, KeySeparator)
	last := strings.LastIndex(key, KeySeparator)
	if first < 0 || first == last {
		return "", "", 0, errors.Wrapf(errors.ErrInvalidKey, "%q: want subset/split/index", key)
	}

	subset = key[:first]
	split = key[first+1 : last]
	ordinal := key[last+1:]

	if subset == "" || split == "" || strings.Contains(split, KeySeparator) {
		return "", "", 0, errors.Wrapf(errors.ErrInvalidKey, "%q: empty or nested component", key)
	}

	index, convErr := strconv.Atoi(ordinal)
	if convErr != nil || index < 0 || (len(ordinal) > 1 && ordinal[0] == '0') {
		return "", "", 0, errors.Wrapf(errors.ErrInvalidKey, "%q: bad row ordinal %q", key, ordinal)
	}

	return subset, split, index, nil
}
