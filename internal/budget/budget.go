// Package budget provides token budget estimation and passage trimming for
// answer prompts. Because the service supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose).
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// passageOverhead is the per-passage cost of numbering and separators in
	// the prompt.
	passageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Fits within 8k-context models (Llama 3 8B) while leaving room for the
	// output. Override with MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitPassages returns how many leading passages fit in maxTokens alongside a
// fixed prompt cost. Passages are ranked most relevant first, so trimming
// drops from the tail. At least one passage is always kept when any exist.
//
// A non-positive maxTokens disables the budget.
func FitPassages(fixedTokens int, passages []string, maxTokens int) int {
	if maxTokens <= 0 || len(passages) == 0 {
		return len(passages)
	}
	used := fixedTokens
	for i, p := range passages {
		used += passageOverhead + Estimate(p)
		if used > maxTokens {
			return max(i, 1)
		}
	}
	return len(passages)
}
