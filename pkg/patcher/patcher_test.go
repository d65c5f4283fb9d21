package patcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(pairs ...[2]string) string {
	out := ""
	for _, p := range pairs {
		out += "<<<<<<< SEARCH\n" + p[0] + "\n=======\n" + p[1] + "\n>>>>>>> REPLACE\n"
	}
	return out
}

func TestApplySingleRule(t *testing.T) {
	original := "const a = 1;\nconst b = 2;\n"
	got, fail := Apply(original, rules([2]string{"const a = 1;", "const a = 10;"}))
	require.Nil(t, fail)
	assert.Equal(t, "const a = 10;\nconst b = 2;\n", got)
}

func TestApplyMultilineRule(t *testing.T) {
	original := "func main() {\n\tfoo()\n\tbar()\n}\n"
	got, fail := Apply(original, rules([2]string{"\tfoo()\n\tbar()", "\tbaz()"}))
	require.Nil(t, fail)
	assert.Equal(t, "func main() {\n\tbaz()\n}\n", got)
}

func TestApplyRulesSeeEarlierRuleResults(t *testing.T) {
	// The second rule targets text produced by the first one: matching runs
	// against the current content, not the original.
	original := "alpha\n"
	got, fail := Apply(original, rules(
		[2]string{"alpha", "beta"},
		[2]string{"beta", "gamma"},
	))
	require.Nil(t, fail)
	assert.Equal(t, "gamma\n", got)
}

func TestApplyTargetNotFound(t *testing.T) {
	_, fail := Apply("hello\n", rules([2]string{"missing", "x"}))
	require.NotNil(t, fail)
	assert.Equal(t, ReasonNoMatch, fail.Reason)
	assert.Equal(t, 0, fail.RuleIndex)
}

func TestApplyTargetAmbiguous(t *testing.T) {
	_, fail := Apply("dup\ndup\n", rules([2]string{"dup", "x"}))
	require.NotNil(t, fail)
	assert.Equal(t, ReasonAmbiguous, fail.Reason)
}

func TestApplyMalformedRules(t *testing.T) {
	tests := []struct {
		name  string
		rules string
	}{
		{"empty", ""},
		{"prose only", "please change the file"},
		{"missing divider", "<<<<<<< SEARCH\nold\n>>>>>>> REPLACE\n"},
		{"missing terminator", "<<<<<<< SEARCH\nold\n=======\nnew\n"},
		{"empty search", "<<<<<<< SEARCH\n=======\nnew\n>>>>>>> REPLACE\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fail := Apply("content\n", tt.rules)
			require.NotNil(t, fail)
			assert.Equal(t, ReasonMalformed, fail.Reason)
		})
	}
}

func TestApplyIsNotIdempotent(t *testing.T) {
	// Re-applying an already-applied rule set must fail with target-not-found
	// rather than silently succeeding.
	ruleText := rules([2]string{"old value", "new value"})
	patched, fail := Apply("old value\n", ruleText)
	require.Nil(t, fail)
	assert.Equal(t, "new value\n", patched)

	_, fail = Apply(patched, ruleText)
	require.NotNil(t, fail)
	assert.Equal(t, ReasonNoMatch, fail.Reason)
}

func TestParseRulesIgnoresSurroundingProse(t *testing.T) {
	text := "Here is the change you asked for:\n" +
		"<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n" +
		"Let me know if anything else is needed."
	parsed, fail := ParseRules(text)
	require.Nil(t, fail)
	require.Len(t, parsed, 1)
	assert.Equal(t, "old", parsed[0].Search)
	assert.Equal(t, "new", parsed[0].Replace)
}

func TestParseRulesEmptyReplaceDeletes(t *testing.T) {
	got, fail := Apply("keep\nremove me\n", "<<<<<<< SEARCH\nremove me\n=======\n\n>>>>>>> REPLACE\n")
	require.Nil(t, fail)
	assert.Equal(t, "keep\n\n", got)
}

func TestFailureError(t *testing.T) {
	f := &Failure{Reason: ReasonAmbiguous, RuleIndex: 1, Detail: "dup"}
	assert.Contains(t, f.Error(), "target-ambiguous")
	assert.Contains(t, f.Error(), "rule 2")
}

func TestChangeStats(t *testing.T) {
	out := ChangeStats("a.ts", "hello world", "hello brave world")
	assert.Contains(t, out, "a.ts")
	assert.Contains(t, out, "+6")
}
