// Package budget provides token budget estimation and conversation trimming.
// Because multiple model backends with different tokenizers are supported,
// this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/askdoc/askdoc-go/internal/llm"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B)
	// while leaving room for the output.
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

// EstimateTurns returns the estimated total token count for a slice of
// conversation turns, summing role + content for each turn.
func EstimateTurns(turns []llm.Turn) int {
	total := 0
	for _, t := range turns {
		// Each turn has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(t.Role))
		total += Estimate(t.Content)
	}
	return total
}

// TrimHistory removes the oldest turns from history until the total estimated
// token count of fixed + history fits within maxTokens. fixed contains turns
// that must not be trimmed (system prompt, search context, current question).
// history contains prior conversation turns that may be dropped oldest-first.
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned; fixed turns are never dropped here —
// callers should warn separately if fixed alone exceeds the budget.
func TrimHistory(fixed, history []llm.Turn, maxTokens int) []llm.Turn {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateTurns(fixed)

	// History is typically ≤20 turns; a linear scan dropping the oldest is
	// clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateTurns(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
