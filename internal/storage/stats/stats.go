// Package stats collects corpus statistics while records stream
// through an export. Length and option-count distributions are kept in
// DDSketches so quantiles stay cheap at any corpus size.
package stats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/csv610/sophoset/internal/record"
)

// Collector accumulates statistics over a record stream. It satisfies
// the export Observer interface and is safe for concurrent use, so one
// collector can watch every export worker.
type Collector struct {
	mu sync.Mutex

	total          int64
	multipleChoice int64
	withImages     int64
	naAnswers      int64

	perPartition map[string]int64

	questionLen *ddsketch.DDSketch
	optionCount *ddsketch.DDSketch
}

// NewCollector creates a collector with the given sketch relative
// accuracy (0.01 = 1% error).
func NewCollector(accuracy float64) (*Collector, error) {
	questionLen, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create question length sketch: %w", err)
	}
	optionCount, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create option count sketch: %w", err)
	}

	return &Collector{
		perPartition: make(map[string]int64),
		questionLen:  questionLen,
		optionCount:  optionCount,
	}, nil
}

// Observe feeds one record into the collector.
func (c *Collector) Observe(rec record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if rec.IsMultipleChoice() {
		c.multipleChoice++
		c.optionCount.Add(float64(len(rec.Options)))
	}
	if rec.HasImages() {
		c.withImages++
	}
	if rec.Answer == record.AnswerNA {
		c.naAnswers++
	}

	c.questionLen.Add(float64(len(rec.Question)))

	if subset, split, _, err := record.ParseKey(rec.Key); err == nil {
		c.perPartition[subset+record.KeySeparator+split]++
	}
}

// PartitionTotal is the record count for one partition.
type PartitionTotal struct {
	Partition string
	Records   int64
}

// Quantiles summarizes a distribution.
type Quantiles struct {
	P50 float64
	P90 float64
	P99 float64
}

// Summary is a point-in-time snapshot of the collected statistics.
type Summary struct {
	Total          int64
	MultipleChoice int64
	WithImages     int64
	NAAnswers      int64
	Partitions     []PartitionTotal
	QuestionLength Quantiles
	OptionCount    Quantiles
}

// Summary returns a snapshot of the statistics so far.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Total:          c.total,
		MultipleChoice: c.multipleChoice,
		WithImages:     c.withImages,
		NAAnswers:      c.naAnswers,
		QuestionLength: sketchQuantiles(c.questionLen),
		OptionCount:    sketchQuantiles(c.optionCount),
	}

	s.Partitions = make([]PartitionTotal, 0, len(c.perPartition))
	for partition, records := range c.perPartition {
		s.Partitions = append(s.Partitions, PartitionTotal{
			Partition: partition,
			Records:   records,
		})
	}
	sort.Slice(s.Partitions, func(i, j int) bool {
		return s.Partitions[i].Partition < s.Partitions[j].Partition
	})

	return s
}

func sketchQuantiles(sketch *ddsketch.DDSketch) Quantiles {
	if sketch.GetCount() == 0 {
		return Quantiles{}
	}

	var q Quantiles
	if v, err := sketch.GetValueAtQuantile(0.50); err == nil {
		q.P50 = v
	}
	if v, err := sketch.GetValueAtQuantile(0.90); err == nil {
		q.P90 = v
	}
	if v, err := sketch.GetValueAtQuantile(0.99); err == nil {
		q.P99 = v
	}
	return q
}
