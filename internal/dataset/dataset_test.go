package dataset

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/csv610/sophoset/internal/errors"
	"github.com/csv610/sophoset/internal/record"
)

// flatChoiceMapper reads rows shaped {"question", "choices", "answerKey"}.
func flatChoiceMapper(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	choices, err := rawStringSlice(row, "choices")
	if err != nil {
		return Fields{}, err
	}
	answer, err := rawString(row, "answerKey")
	if err != nil {
		return Fields{}, err
	}
	return Fields{Question: question, OptionList: choices, Answer: answer}, nil
}

func choiceRows(n int) []Raw {
	rows := make([]Raw, n)
	for i := range rows {
		rows[i] = Raw{
			"question":  fmt.Sprintf("Q%d", i),
			"choices":   []any{"x", "y"},
			"answerKey": "A",
		}
	}
	return rows
}

func TestDatasetExtraction(t *testing.T) {
	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", choiceRows(3))

	ds := New("demo", provider, flatChoiceMapper)
	if err := ds.Load("default", "test"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	n, err := ds.RowCount()
	if err != nil || n != 3 {
		t.Fatalf("RowCount = %d, %v", n, err)
	}

	for i := 0; i < 3; i++ {
		rec, err := ds.Row(i)
		if err != nil {
			t.Fatalf("Row(%d): %v", i, err)
		}
		wantKey := fmt.Sprintf("default/test/%d", i)
		if rec.Key != wantKey {
			t.Errorf("Row(%d).Key = %q, want %q", i, rec.Key, wantKey)
		}
		if rec.Question != fmt.Sprintf("Q%d", i) {
			t.Errorf("Row(%d).Question = %q", i, rec.Question)
		}
		wantOpts := record.Options{{Label: "A", Text: "x"}, {Label: "B", Text: "y"}}
		if !reflect.DeepEqual(rec.Options, wantOpts) {
			t.Errorf("Row(%d).Options = %v, want %v", i, rec.Options, wantOpts)
		}
		if rec.Answer != "A" {
			t.Errorf("Row(%d).Answer = %q, want A", i, rec.Answer)
		}
	}

	if _, err := ds.Row(3); !errors.Is(err, errors.ErrIndexOutOfRange) {
		t.Errorf("Row(3): err = %v, want out-of-range", err)
	}
	if _, err := ds.Row(-1); !errors.Is(err, errors.ErrIndexOutOfRange) {
		t.Errorf("Row(-1): err = %v, want out-of-range", err)
	}
}

func TestDatasetAnswerNormalization(t *testing.T) {
	idx := func(i int) *int { return &i }

	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{"index to letter", Fields{OptionList: []string{"x", "y", "z"}, AnswerIndex: idx(2)}, "C"},
		{"index overflow", Fields{OptionList: []string{"x", "y"}, AnswerIndex: idx(30)}, record.AnswerNA},
		{"label kept", Fields{OptionList: []string{"x", "y"}, Answer: "B"}, "B"},
		{"label not an option", Fields{OptionList: []string{"x", "y"}, Answer: "Q"}, record.AnswerNA},
		{"open ended text kept", Fields{Answer: "42"}, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewMemoryProvider()
			provider.Add("demo", "default", "test", []Raw{{}})

			ds := New("demo", provider, func(Raw, int) (Fields, error) {
				f := tt.fields
				f.Question = "q"
				return f, nil
			})
			if err := ds.Load("default", "test"); err != nil {
				t.Fatalf("Load: %v", err)
			}
			rec, err := ds.Row(0)
			if err != nil {
				t.Fatalf("Row: %v", err)
			}
			if rec.Answer != tt.want {
				t.Errorf("Answer = %q, want %q", rec.Answer, tt.want)
			}
		})
	}
}

func TestDatasetUnknownPartition(t *testing.T) {
	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", choiceRows(1))
	provider.Add("demo", "default", "train", choiceRows(1))

	ds := New("demo", provider, flatChoiceMapper)

	err := ds.Load("default", "validation")
	if !errors.Is(err, errors.ErrUnknownPartition) {
		t.Fatalf("Load: err = %v, want unknown-partition", err)
	}

	var upe *errors.UnknownPartitionError
	if !errors.As(err, &upe) {
		t.Fatalf("Load: err %v is not UnknownPartitionError", err)
	}
	want := []string{"default/test", "default/train"}
	if !reflect.DeepEqual(upe.Valid, want) {
		t.Errorf("valid partitions = %v, want %v", upe.Valid, want)
	}

	// A failed load must not disturb the handle.
	if ds.Loaded() {
		t.Error("handle loaded after failed Load")
	}
}

func TestDatasetLoadSwapsTable(t *testing.T) {
	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", choiceRows(2))
	provider.Add("demo", "default", "train", choiceRows(5))

	ds := New("demo", provider, flatChoiceMapper)
	if err := ds.Load("default", "test"); err != nil {
		t.Fatalf("Load test: %v", err)
	}
	if err := ds.Load("default", "train"); err != nil {
		t.Fatalf("Load train: %v", err)
	}

	subset, split := ds.Active()
	if subset != "default" || split != "train" {
		t.Errorf("Active = %s/%s, want default/train", subset, split)
	}
	if n, _ := ds.RowCount(); n != 5 {
		t.Errorf("RowCount = %d, want 5", n)
	}

	ds.Release()
	if ds.Loaded() {
		t.Error("Loaded after Release")
	}
	if _, err := ds.RowCount(); !errors.Is(err, errors.ErrNoTableLoaded) {
		t.Errorf("RowCount after Release: err = %v", err)
	}
}

func TestPrekeyedOptionOverflow(t *testing.T) {
	// A mapper handing back 30 already-labeled options: the row is
	// kept with the first 26, mirroring the plain-sequence encoder.
	mapper := func(_ Raw, _ int) (Fields, error) {
		opts := make(record.Options, 30)
		for i := range opts {
			label, ok := record.LetterAt(i)
			if !ok {
				label = fmt.Sprintf("X%d", i)
			}
			opts[i] = record.Option{Label: label, Text: fmt.Sprintf("choice %d", i)}
		}
		return Fields{Question: "pick one", Options: opts, Answer: "A"}, nil
	}

	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", []Raw{{}})

	diag := &captureDiagnostics{}
	ds := New("demo", provider, mapper, WithDiagnostics(diag))
	if err := ds.Load("default", "test"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rec, err := ds.Row(0)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if len(rec.Options) != record.MaxOptions {
		t.Fatalf("kept %d options, want %d", len(rec.Options), record.MaxOptions)
	}
	if last := rec.Options[record.MaxOptions-1]; last.Label != "Z" || last.Text != "choice 25" {
		t.Errorf("last option = %+v, want Z/choice 25", last)
	}
	if rec.Answer != "A" {
		t.Errorf("Answer = %q, want A", rec.Answer)
	}

	// The overflow is reported, not fatal.
	if len(diag.events) != 1 || !errors.Is(diag.events[0].Reason, errors.ErrTooManyOptions) {
		t.Errorf("diagnostics = %+v, want one ErrTooManyOptions event", diag.events)
	}
}

type captureDiagnostics struct {
	events []FailureEvent
}

func (c *captureDiagnostics) RowFailure(ev FailureEvent) {
	c.events = append(c.events, ev)
}

func TestDatasetFailureIsolation(t *testing.T) {
	rows := choiceRows(10)
	delete(rows[5], "question")

	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", rows)

	diag := &captureDiagnostics{}
	ds := New("demo", provider, flatChoiceMapper, WithDiagnostics(diag))
	if err := ds.Load("default", "test"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	records, failures, err := ds.Samples(SampleOptions{})
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(records) != 9 {
		t.Errorf("got %d records, want 9", len(records))
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}

	if len(diag.events) != 1 {
		t.Fatalf("diagnostics got %d events, want 1", len(diag.events))
	}
	ev := diag.events[0]
	if ev.Index != 5 || ev.Subset != "default" || ev.Split != "test" {
		t.Errorf("event = %+v", ev)
	}
	if !errors.Is(ev.Reason, errors.ErrMissingField) {
		t.Errorf("event reason = %v", ev.Reason)
	}

	// The failed row surfaces as a RowError on direct access.
	_, err = ds.Row(5)
	var re *errors.RowError
	if !errors.As(err, &re) || re.Index != 5 {
		t.Errorf("Row(5): err = %v, want RowError at 5", err)
	}
}

func TestSelectIndicesSequential(t *testing.T) {
	got := SelectIndices(100, SampleOptions{MaxSamples: 10})
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SelectIndices = %v, want %v", got, want)
	}

	// MaxSamples past the row count is clamped.
	if got := SelectIndices(3, SampleOptions{MaxSamples: 10}); len(got) != 3 {
		t.Errorf("clamped selection = %v", got)
	}

	if got := SelectIndices(0, SampleOptions{}); got != nil {
		t.Errorf("empty table selection = %v", got)
	}
}

func TestSelectIndicesSeededReproducible(t *testing.T) {
	seed := int64(42)
	opts := SampleOptions{MaxSamples: 10, Random: true, Seed: &seed}

	first := SelectIndices(100, opts)
	second := SelectIndices(100, opts)

	if len(first) != 10 {
		t.Fatalf("got %d indices, want 10", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed produced different selections:\n%v\n%v", first, second)
	}

	// Ascending order, distinct, in range.
	for i, idx := range first {
		if idx < 0 || idx >= 100 {
			t.Errorf("index %d out of range", idx)
		}
		if i > 0 && first[i-1] >= idx {
			t.Errorf("selection not strictly ascending: %v", first)
		}
	}

	otherSeed := int64(43)
	other := SelectIndices(100, SampleOptions{MaxSamples: 10, Random: true, Seed: &otherSeed})
	if reflect.DeepEqual(first, other) {
		t.Error("different seeds produced identical selections")
	}
}

func TestExplorerStreamsAllPartitions(t *testing.T) {
	provider := NewMemoryProvider()
	provider.Add("demo", "a", "test", choiceRows(2))
	provider.Add("demo", "b", "train", choiceRows(3))

	ds := New("demo", provider, flatChoiceMapper)

	collect := func() []string {
		ex := ds.Stream()
		defer ex.Close()
		var keys []string
		for ex.Next() {
			keys = append(keys, ex.Record().Key)
		}
		if err := ex.Err(); err != nil {
			t.Fatalf("Err: %v", err)
		}
		return keys
	}

	want := []string{"a/test/0", "a/test/1", "b/train/0", "b/train/1", "b/train/2"}
	got := collect()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stream keys = %v, want %v", got, want)
	}

	// A second stream starts over from the beginning.
	if again := collect(); !reflect.DeepEqual(again, want) {
		t.Errorf("restarted stream keys = %v, want %v", again, want)
	}

	// The explorer releases the handle's table when exhausted.
	if ds.Loaded() {
		t.Error("table still resident after exhausted stream")
	}
}

func TestExplorerSkipsFailedRows(t *testing.T) {
	rows := choiceRows(10)
	delete(rows[5], "question")

	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", rows)

	ds := New("demo", provider, flatChoiceMapper)
	ex := ds.Stream()
	defer ex.Close()

	var keys []string
	for ex.Next() {
		keys = append(keys, ex.Record().Key)
	}
	if err := ex.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	if len(keys) != 9 {
		t.Errorf("streamed %d records, want 9", len(keys))
	}
	if ex.Failures() != 1 {
		t.Errorf("Failures = %d, want 1", ex.Failures())
	}
	for _, key := range keys {
		if key == "default/test/5" {
			t.Error("failed row leaked into the stream")
		}
	}
}

type flakyProvider struct {
	*MemoryProvider
	broken map[string]bool
}

func (p *flakyProvider) LoadRows(source, subset, split string) (RowTable, error) {
	if p.broken[subset+"/"+split] {
		return nil, fmt.Errorf("synthetic load failure")
	}
	return p.MemoryProvider.LoadRows(source, subset, split)
}

func TestExplorerSkipsUnloadablePartitions(t *testing.T) {
	mem := NewMemoryProvider()
	mem.Add("demo", "a", "test", choiceRows(1))
	mem.Add("demo", "b", "test", choiceRows(1))
	mem.Add("demo", "c", "test", choiceRows(1))

	provider := &flakyProvider{MemoryProvider: mem, broken: map[string]bool{"b/test": true}}

	ds := New("demo", provider, flatChoiceMapper)
	ex := ds.Stream()
	defer ex.Close()

	var keys []string
	for ex.Next() {
		keys = append(keys, ex.Record().Key)
	}
	if err := ex.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	want := []string{"a/test/0", "c/test/0"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("stream keys = %v, want %v", keys, want)
	}
	if ex.PartitionFailures() != 1 {
		t.Errorf("PartitionFailures = %d, want 1", ex.PartitionFailures())
	}
	if failed := ex.FailedPartitions(); !reflect.DeepEqual(failed, []string{"b/test"}) {
		t.Errorf("FailedPartitions = %v, want [b/test]", failed)
	}
}

func TestExplorerEarlyClose(t *testing.T) {
	provider := NewMemoryProvider()
	provider.Add("demo", "default", "test", choiceRows(10))

	ds := New("demo", provider, flatChoiceMapper)
	ex := ds.Stream()

	if !ex.Next() {
		t.Fatal("Next returned false on first record")
	}
	if err := ex.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ex.Next() {
		t.Error("Next returned true after Close")
	}
	if ds.Loaded() {
		t.Error("table still resident after Close")
	}

	// Closing twice is fine.
	if err := ex.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	src, err := r.Lookup("mmlu")
	if err != nil {
		t.Fatalf("Lookup(mmlu): %v", err)
	}
	if src.Hub != "cais/mmlu" || src.Mapper == nil {
		t.Errorf("mmlu source = %+v", src)
	}

	_, err = r.Lookup("nope")
	if !errors.Is(err, errors.ErrUnknownSource) {
		t.Errorf("Lookup(nope): err = %v", err)
	}

	names := r.Names()
	if !sortedStrings(names) {
		t.Errorf("Names not sorted: %v", names)
	}
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
