package budget

import (
	"strings"
	"testing"

	"github.com/askdoc/askdoc-go/internal/llm"
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

func Test_EstimateTurns(t *testing.T) {
	t.Parallel()
	turns := []llm.Turn{
		{Role: llm.RoleUser, Content: "hello world"},
		{Role: llm.RoleUser, Content: "hello world"},
	}
	got := EstimateTurns(turns)
	// Each turn: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// Two turns: 14
	if got != 14 {
		t.Errorf("EstimateTurns = %d, want 14", got)
	}
}

func Test_TrimHistory_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	fixed := []llm.Turn{{Role: llm.RoleSystem, Content: "sys"}}
	history := []llm.Turn{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleUser, Content: "there"},
	}
	got := TrimHistory(fixed, history, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Errorf("want 2 history turns, got %d", len(got))
	}
}

func Test_TrimHistory_DropsOldest(t *testing.T) {
	t.Parallel()
	history := []llm.Turn{
		{Role: llm.RoleUser, Content: "oldest"},
		{Role: llm.RoleUser, Content: "newest"},
	}
	// Each history turn costs: 4 overhead + Estimate("user")=1 + Estimate(content)=1 = 6 tokens.
	// Two turns = 12 tokens. One turn = 6 tokens.
	// Set fixed to an empty slice and budget to 7 — fits exactly one turn (6 ≤ 7)
	// but not two (12 > 7). The oldest should be dropped.
	got := TrimHistory(nil, history, 7)
	if len(got) != 1 {
		t.Errorf("want 1 history turn after trim, got %d", len(got))
	}
	if got[0].Content != "newest" {
		t.Errorf("want newest turn retained, got %q", got[0].Content)
	}
}

func Test_TrimHistory_EmptyHistory(t *testing.T) {
	t.Parallel()
	fixed := []llm.Turn{{Role: llm.RoleSystem, Content: "sys"}}
	got := TrimHistory(fixed, nil, DefaultMaxContextTokens)
	if len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}

func Test_TrimHistory_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	// Fixed alone exceeds budget — all history should be dropped.
	fixed := []llm.Turn{
		{Role: llm.RoleSystem, Content: strings.Repeat("x", 4*7000)}, // ~7000 tokens
	}
	history := []llm.Turn{
		{Role: llm.RoleUser, Content: "a"},
		{Role: llm.RoleUser, Content: "b"},
	}
	got := TrimHistory(fixed, history, 6000)
	if len(got) != 0 {
		t.Errorf("want 0 history turns, got %d", len(got))
	}
}
