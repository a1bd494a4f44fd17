package validation

import (
	"strings"
	"testing"
)

func TestValidatePartitionName(t *testing.T) {
	valid := []string{
		"test",
		"abstract_algebra",
		"dev-1",
		"v1.2",
		"ARC-Challenge",
	}
	for _, name := range valid {
		if err := ValidatePartitionName(name); err != nil {
			t.Errorf("ValidatePartitionName(%q): %v", name, err)
		}
	}

	invalid := []string{
		"",
		"a/b",
		"a\\b",
		"has space",
		"ctrl\x01char",
		".",
		"..",
		strings.Repeat("x", 256),
	}
	for _, name := range invalid {
		if err := ValidatePartitionName(name); err == nil {
			t.Errorf("ValidatePartitionName(%q) accepted", name)
		}
	}
}

func TestValidateNameRules(t *testing.T) {
	rules := NameRules{MinLength: 2, MaxLength: 5}

	if err := ValidateName("abc", rules); err != nil {
		t.Errorf("ValidateName(abc): %v", err)
	}
	if err := ValidateName("a", rules); err == nil {
		t.Error("too-short name accepted")
	}
	if err := ValidateName("abcdef", rules); err == nil {
		t.Error("too-long name accepted")
	}
	// Dots allowed only when the rules say so.
	if err := ValidateName("a.b", rules); err == nil {
		t.Error("dot accepted without AllowDots")
	}
}
