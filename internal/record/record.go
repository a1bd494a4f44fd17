// Package record defines the canonical question-answer record that every
// data source normalizes into, the lettered option encoding, and the
// hierarchical key addressing scheme.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnswerNA is the sentinel answer for records whose source answer could
// not be mapped onto an option label.
const AnswerNA = "NA"

// Record is the single normalized question-answer representation.
// This is the primary data unit flowing through extraction, streaming,
// and storage. A Record is a value type: freely copyable, never mutated
// after construction.
type Record struct {
	// Key is the globally unique address "<subset>/<split>/<index>".
	Key string `json:"key"`

	// Context is optional contextual information preceding the question.
	Context string `json:"context"`

	// Question is the question text. May be empty, but always present.
	Question string `json:"question"`

	// Images holds URIs or paths for vision sources; empty otherwise.
	Images []string `json:"images"`

	// Options are the lettered multiple-choice alternatives in original
	// order; empty for open-ended questions.
	Options Options `json:"options"`

	// Answer is the correct answer. For records with options it is one
	// of the option labels, or AnswerNA when the source answer could not
	// be mapped to a letter.
	Answer string `json:"answer"`

	// Explanation is an optional explanation of the answer.
	Explanation string `json:"explanation"`
}

// IsMultipleChoice reports whether the record carries lettered options.
func (r *Record) IsMultipleChoice() bool {
	return len(r.Options) > 0
}

// HasImages reports whether the record originates from a vision source.
func (r *Record) HasImages() bool {
	return len(r.Images) > 0
}

// Option is one lettered alternative.
type Option struct {
	Label string
	Text  string
}

// Options is an insertion-ordered label→text mapping. Labels are drawn
// from A..Z in strict order with no gaps or duplicates.
type Options []Option

// Get returns the text for a label and whether the label exists.
func (o Options) Get(label string) (string, bool) {
	for _, opt := range o {
		if opt.Label == label {
			return opt.Text, true
		}
	}
	return "", false
}

// Has reports whether the label exists.
func (o Options) Has(label string) bool {
	_, ok := o.Get(label)
	return ok
}

// Labels returns the labels in insertion order.
func (o Options) Labels() []string {
	labels := make([]string, len(o))
	for i, opt := range o {
		labels[i] = opt.Label
	}
	return labels
}

// Texts returns the option texts in insertion order.
func (o Options) Texts() []string {
	texts := make([]string, len(o))
	for i, opt := range o {
		texts[i] = opt.Text
	}
	return texts
}

// MarshalJSON renders the options as a JSON object whose member order is
// the insertion order. Encoding by hand keeps the output deterministic,
// which the flat export relies on.
func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(opt.Label)
		if err != nil {
			return nil, err
		}
		text, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(text)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object preserving member order.
func (o *Options) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("options: expected object, got %v", tok)
	}

	var opts Options
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("options: non-string label %v", keyTok)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("options: value for %q: %w", label, err)
		}
		opts = append(opts, Option{Label: label, Text: text})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = opts
	return nil
}
