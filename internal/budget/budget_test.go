package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.SystemMessage("answer from context"),
		schema.UserMessage("hello world"),
	}
	// system: 4 overhead + Estimate("system")=1 + Estimate(19 chars)=4 = 9
	// user:   4 overhead + Estimate("user")=1 + Estimate(11 chars)=2 = 7
	got := EstimateMessages(msgs)
	if got != 16 {
		t.Errorf("EstimateMessages = %d, want 16", got)
	}
}

func Test_FitPassages_AllFit(t *testing.T) {
	t.Parallel()
	passages := []string{"short", "also short", "tiny"}
	if got := FitPassages(10, passages, DefaultMaxContextTokens); got != 3 {
		t.Errorf("want 3 passages kept, got %d", got)
	}
}

func Test_FitPassages_DropsLowestRanked(t *testing.T) {
	t.Parallel()
	// Each passage costs 4 overhead + 100 = 104 tokens.
	p := strings.Repeat("x", 400)
	passages := []string{p, p, p, p}
	// fixed 50 + 2*104 = 258 <= 300, a third would be 362.
	if got := FitPassages(50, passages, 300); got != 2 {
		t.Errorf("want 2 passages kept, got %d", got)
	}
}

func Test_FitPassages_KeepsAtLeastOne(t *testing.T) {
	t.Parallel()
	passages := []string{strings.Repeat("x", 4*7000), "b"}
	if got := FitPassages(100, passages, 6000); got != 1 {
		t.Errorf("want 1 passage kept, got %d", got)
	}
}

func Test_FitPassages_Disabled(t *testing.T) {
	t.Parallel()
	passages := []string{strings.Repeat("x", 4*7000), strings.Repeat("y", 4*7000)}
	if got := FitPassages(0, passages, 0); got != 2 {
		t.Errorf("want budget disabled, got %d", got)
	}
	if got := FitPassages(0, nil, 10); got != 0 {
		t.Errorf("want 0 for no passages, got %d", got)
	}
}
