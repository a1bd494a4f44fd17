package stats

import (
	"fmt"
	"testing"

	"github.com/csv610/sophoset/internal/record"
)

func TestCollectorSummary(t *testing.T) {
	c, err := NewCollector(0.01)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	for i := 0; i < 100; i++ {
		rec := record.Record{
			Key:      fmt.Sprintf("default/test/%d", i),
			Question: "How many legs does a spider have?",
			Options: record.Options{
				{Label: "A", Text: "six"},
				{Label: "B", Text: "eight"},
			},
			Answer: "B",
		}
		if i%10 == 0 {
			rec.Answer = record.AnswerNA
		}
		if i%4 == 0 {
			rec.Images = []string{"img.png"}
		}
		c.Observe(rec)
	}
	c.Observe(record.Record{
		Key:      "math/train/0",
		Question: "2+2?",
		Answer:   "4",
	})

	s := c.Summary()

	if s.Total != 101 {
		t.Errorf("Total = %d, want 101", s.Total)
	}
	if s.MultipleChoice != 100 {
		t.Errorf("MultipleChoice = %d, want 100", s.MultipleChoice)
	}
	if s.WithImages != 25 {
		t.Errorf("WithImages = %d, want 25", s.WithImages)
	}
	if s.NAAnswers != 10 {
		t.Errorf("NAAnswers = %d, want 10", s.NAAnswers)
	}

	if len(s.Partitions) != 2 {
		t.Fatalf("Partitions = %v, want 2 entries", s.Partitions)
	}
	if s.Partitions[0].Partition != "default/test" || s.Partitions[0].Records != 100 {
		t.Errorf("partition 0 = %+v", s.Partitions[0])
	}
	if s.Partitions[1].Partition != "math/train" || s.Partitions[1].Records != 1 {
		t.Errorf("partition 1 = %+v", s.Partitions[1])
	}

	// All multiple-choice records had two options, so every quantile
	// of the option count sits at 2 give or take sketch accuracy.
	if s.OptionCount.P50 < 1.9 || s.OptionCount.P50 > 2.1 {
		t.Errorf("OptionCount.P50 = %v, want ~2", s.OptionCount.P50)
	}
	if s.QuestionLength.P99 < 4 {
		t.Errorf("QuestionLength.P99 = %v, want >= 4", s.QuestionLength.P99)
	}
}

func TestCollectorEmpty(t *testing.T) {
	c, err := NewCollector(0.01)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	s := c.Summary()
	if s.Total != 0 {
		t.Errorf("Total = %d, want 0", s.Total)
	}
	if s.QuestionLength.P50 != 0 {
		t.Errorf("QuestionLength.P50 = %v, want 0", s.QuestionLength.P50)
	}
}
