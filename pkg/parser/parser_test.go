package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/actions"
)

func TestExtractWrite(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantPath    string
		wantContent string
	}{
		{
			name:        "plain body",
			text:        `<write path="src/app.ts">export const x = 1;</write>`,
			wantPath:    "src/app.ts",
			wantContent: "export const x = 1;",
		},
		{
			name: "fenced body is unwrapped",
			text: "<write path=\"src/app.ts\">\n```ts\nconst a = 1;\n\nconst b = 2;\n```\n</write>",
			wantPath:    "src/app.ts",
			wantContent: "const a = 1;\n\nconst b = 2;",
		},
		{
			name: "fence without language",
			text: "<write path=\"a.ts\">\n```\nline\n```\n</write>",
			wantPath:    "a.ts",
			wantContent: "line",
		},
		{
			name:        "windows separators normalized",
			text:        `<write path="src\components\App.tsx">x</write>`,
			wantPath:    "src/components/App.tsx",
			wantContent: "x",
		},
		{
			name:        "traversal above root stripped",
			text:        `<write path="../../etc/passwd">x</write>`,
			wantPath:    "etc/passwd",
			wantContent: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.text)
			require.Len(t, ex.Actions, 1)
			require.Empty(t, ex.Warnings)
			a := ex.Actions[0]
			assert.Equal(t, actions.KindWrite, a.Kind)
			assert.Equal(t, tt.wantPath, a.Path)
			assert.Equal(t, tt.wantContent, a.Content)
		})
	}
}

func TestExtractWriteKeepsInnerLinesIntact(t *testing.T) {
	text := "<write path=\"a.ts\">\n```ts\nfirst\n\n\nmiddle\n\nlast\n```\n</write>"
	ex := Extract(text)
	require.Len(t, ex.Actions, 1)
	assert.Equal(t, "first\n\n\nmiddle\n\nlast", ex.Actions[0].Content)
}

func TestExtractMissingPathYieldsWarningNotFailure(t *testing.T) {
	text := `<write description="no path here">orphan</write>` +
		`<write path="kept.ts">kept</write>` +
		`<search-replace description="also no path">rules</search-replace>` +
		`<delete path="gone.ts"></delete>`

	ex := Extract(text)

	// Dropped tags each contribute exactly one warning and zero actions;
	// subsequent tags still parse.
	assert.Len(t, ex.Warnings, 2)
	require.Len(t, ex.Actions, 2)
	assert.Equal(t, actions.KindWrite, ex.Actions[0].Kind)
	assert.Equal(t, "kept.ts", ex.Actions[0].Path)
	assert.Equal(t, actions.KindDelete, ex.Actions[1].Kind)
	assert.Equal(t, "gone.ts", ex.Actions[1].Path)
}

func TestExtractRename(t *testing.T) {
	ex := Extract(`<rename from="old/name.ts" to="new/name.ts"></rename>`)
	require.Len(t, ex.Actions, 1)
	a := ex.Actions[0]
	assert.Equal(t, actions.KindRename, a.Kind)
	assert.Equal(t, "old/name.ts", a.FromPath)
	assert.Equal(t, "new/name.ts", a.ToPath)

	ex = Extract(`<rename from="only-from.ts"></rename>`)
	assert.Empty(t, ex.Actions)
	assert.Len(t, ex.Warnings, 1)
}

func TestExtractAddDependencyOrderAndDuplicates(t *testing.T) {
	text := `<add-dependency packages="left right"></add-dependency>` +
		`some prose between tags` +
		`<add-dependency packages="right extra"></add-dependency>`

	ex := Extract(text)
	require.Len(t, ex.Actions, 2)
	assert.Equal(t, []string{"left", "right"}, ex.Actions[0].Packages)
	assert.Equal(t, []string{"right", "extra"}, ex.Actions[1].Packages)
}

func TestExtractExecuteSQL(t *testing.T) {
	text := "<execute-sql description=\"add users\">\n```sql\nCREATE TABLE users (id int);\n```\n</execute-sql>"
	ex := Extract(text)
	require.Len(t, ex.Actions, 1)
	a := ex.Actions[0]
	assert.Equal(t, actions.KindExecuteSQL, a.Kind)
	assert.Equal(t, "CREATE TABLE users (id int);", a.Content)
	assert.Equal(t, "add users", a.Description)
}

func TestExtractChatSummaryAndCommand(t *testing.T) {
	ex := Extract(`<chat-summary>Added login page</chat-summary><command type="rebuild"></command><command></command>`)
	require.Len(t, ex.Actions, 2)
	assert.Equal(t, actions.KindChatSummary, ex.Actions[0].Kind)
	assert.Equal(t, "Added login page", ex.Actions[0].Content)
	assert.Equal(t, actions.KindCommand, ex.Actions[1].Kind)
	assert.Equal(t, "rebuild", ex.Actions[1].CommandType)
	assert.Len(t, ex.Warnings, 1)
}

func TestExtractGroupsByKind(t *testing.T) {
	// Tags interleaved in the text come out grouped per kind, each kind in
	// textual order. Execution order is the orchestrator's concern.
	text := `<delete path="a.ts"></delete>` +
		`<write path="w1.ts">1</write>` +
		`<delete path="b.ts"></delete>` +
		`<write path="w2.ts">2</write>`

	ex := Extract(text)
	require.Len(t, ex.Actions, 4)
	assert.Equal(t, "w1.ts", ex.Actions[0].Path)
	assert.Equal(t, "w2.ts", ex.Actions[1].Path)
	assert.Equal(t, "a.ts", ex.Actions[2].Path)
	assert.Equal(t, "b.ts", ex.Actions[3].Path)
}

func TestExtractMalformedInputNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"<write path=\"x.ts\">unterminated",
		"<write >no attrs</write>",
		"<<<>>> garbage <write/>",
		"<rename from=\"a\" to=\"b\">",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Extract(in) })
	}
}

func TestExtractSearchReplace(t *testing.T) {
	text := "<search-replace path=\"src/app.ts\" description=\"fix import\">\n" +
		"<<<<<<< SEARCH\nold line\n=======\nnew line\n>>>>>>> REPLACE\n</search-replace>"
	ex := Extract(text)
	require.Len(t, ex.Actions, 1)
	a := ex.Actions[0]
	assert.Equal(t, actions.KindSearchReplace, a.Kind)
	assert.Equal(t, "src/app.ts", a.Path)
	assert.Contains(t, a.Content, "<<<<<<< SEARCH")
	assert.Equal(t, "fix import", a.Description)
}
