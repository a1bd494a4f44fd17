package record

import (
	"fmt"

	"github.com/csv610/sophoset/internal/errors"
)

// MaxOptions is the largest option set the lettered encoding supports.
const MaxOptions = 26

// LetterAt returns the label for a zero-based option index ("A" for 0).
// ok is false when the index falls outside A..Z.
func LetterAt(index int) (string, bool) {
	if index < 0 || index >= MaxOptions {
		return "", false
	}
	return string(rune('A' + index)), true
}

// EncodeOptions assigns letters A, B, C, ... to a plain sequence of
// option texts in input order. An empty input yields empty Options; that
// is the open-ended-question case, not an error.
//
// At most MaxOptions entries are encoded. Longer inputs are truncated at
// 26 and the recoverable ErrTooManyOptions condition is returned together
// with the truncated encoding, so the caller can log and continue.
func EncodeOptions(texts []string) (Options, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	n := len(texts)
	var err error
	if n > MaxOptions {
		n = MaxOptions
		err = errors.Wrapf(errors.ErrTooManyOptions,
			"%d options, keeping first %d", len(texts), MaxOptions)
	}

	opts := make(Options, n)
	for i := 0; i < n; i++ {
		label, _ := LetterAt(i)
		opts[i] = Option{Label: label, Text: texts[i]}
	}
	return opts, err
}

// ValidateOptions checks a pre-keyed option mapping for label contiguity:
// labels must be exactly A, B, C, ... with no gap, duplicate, or
// out-of-order insertion. A violation is the recoverable
// ErrMalformedOptions condition; the row is rejected, not the partition.
func ValidateOptions(opts Options) error {
	if len(opts) > MaxOptions {
		return errors.Wrapf(errors.ErrTooManyOptions,
			"%d labeled options", len(opts))
	}
	for i, opt := range opts {
		want, _ := LetterAt(i)
		if opt.Label != want {
			return errors.Wrap(errors.ErrMalformedOptions,
				fmt.Sprintf("label %q at position %d, want %q", opt.Label, i, want))
		}
	}
	return nil
}
