package dataset

import (
	"github.com/csv610/sophoset/internal/errors"
	"github.com/csv610/sophoset/internal/record"
)

// extract runs the per-row pipeline: invoke the mapping capability,
// encode the options, normalize the answer, and wrap the result in a
// canonical record addressed by the active partition.
//
// Every failure here is row-level and recoverable: the caller skips the
// row and continues. The diagnostics sink receives one event per
// skipped row with enough context to reproduce.
func (d *Dataset) extract(row Raw, index int) (record.Record, error) {
	fields, err := d.mapper(row, index)
	if err != nil {
		return record.Record{}, d.rowFailure(index, err)
	}

	opts, err := encodeFieldOptions(fields)
	if err != nil {
		if errors.Is(err, errors.ErrTooManyOptions) {
			// Truncated but usable; log and keep the row.
			d.diag.RowFailure(FailureEvent{
				Dataset: d.name,
				Subset:  d.subset,
				Split:   d.split,
				Index:   index,
				Reason:  err,
			})
		} else {
			return record.Record{}, d.rowFailure(index, err)
		}
	}

	key, err := record.BuildKey(d.subset, d.split, index)
	if err != nil {
		return record.Record{}, d.rowFailure(index, err)
	}

	return record.Record{
		Key:         key,
		Context:     fields.Context,
		Question:    fields.Question,
		Images:      fields.Images,
		Options:     opts,
		Answer:      normalizeAnswer(fields, opts),
		Explanation: fields.Explanation,
	}, nil
}

// encodeFieldOptions applies the option encoder to whichever raw option
// representation the mapper returned. Pre-keyed mappings follow the
// same overflow rule as plain sequences: entries past MaxOptions are
// dropped and the truncated prefix is returned alongside the
// recoverable ErrTooManyOptions condition.
func encodeFieldOptions(fields Fields) (record.Options, error) {
	if len(fields.Options) > 0 {
		opts := fields.Options
		var overflow error
		if len(opts) > record.MaxOptions {
			overflow = errors.Wrapf(errors.ErrTooManyOptions,
				"%d labeled options, keeping first %d", len(opts), record.MaxOptions)
			opts = opts[:record.MaxOptions]
		}
		if err := record.ValidateOptions(opts); err != nil {
			return nil, err
		}
		return opts, overflow
	}
	return record.EncodeOptions(fields.OptionList)
}

// normalizeAnswer resolves the source answer against the encoded
// options. A zero-based answer index becomes its letter; an index past
// the alphabet, or an answer that matches no option label, becomes the
// AnswerNA sentinel so the record invariant always holds. Open-ended
// records keep the answer text untouched.
func normalizeAnswer(fields Fields, opts record.Options) string {
	answer := fields.Answer
	if fields.AnswerIndex != nil {
		letter, ok := record.LetterAt(*fields.AnswerIndex)
		if !ok {
			return record.AnswerNA
		}
		answer = letter
	}

	if len(opts) == 0 {
		return answer
	}
	if !opts.Has(answer) {
		return record.AnswerNA
	}
	return answer
}

// rowFailure reports a skipped row to the diagnostics sink and wraps
// the cause with partition identity.
func (d *Dataset) rowFailure(index int, cause error) error {
	err := errors.NewRowError(d.subset, d.split, index, cause)
	d.diag.RowFailure(FailureEvent{
		Dataset: d.name,
		Subset:  d.subset,
		Split:   d.split,
		Index:   index,
		Reason:  cause,
	})
	return err
}
