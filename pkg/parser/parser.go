// Package parser extracts typed actions from the embedded tag markup a model
// emits inside its response text. Extraction is a pure function over the full
// response string: it never fails as a whole, it only drops individual
// malformed tags and records a warning for each.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loomworks/loom/pkg/actions"
	"github.com/loomworks/loom/pkg/filesystem"
)

// Extraction is the result of scanning one response. Actions are grouped by
// tag kind (kinds are not interleaved); within a kind they follow textual
// appearance order. Execution interleaving is the orchestrator's job, which
// applies its own fixed step order regardless of this grouping.
type Extraction struct {
	Actions  []actions.Action
	Warnings []string
}

// One compiled open/close matcher per tag kind. Matching is independent per
// kind, and every call scans the text fresh; there is no shared parse state
// across calls.
var (
	writeTagRe         = regexp.MustCompile(`(?s)<write\b([^>]*)>(.*?)</write>`)
	renameTagRe        = regexp.MustCompile(`(?s)<rename\b([^>]*)>(.*?)</rename>`)
	deleteTagRe        = regexp.MustCompile(`(?s)<delete\b([^>]*)>(.*?)</delete>`)
	addDependencyTagRe = regexp.MustCompile(`(?s)<add-dependency\b([^>]*)>(.*?)</add-dependency>`)
	executeSQLTagRe    = regexp.MustCompile(`(?s)<execute-sql\b([^>]*)>(.*?)</execute-sql>`)
	searchReplaceTagRe = regexp.MustCompile(`(?s)<search-replace\b([^>]*)>(.*?)</search-replace>`)
	chatSummaryTagRe   = regexp.MustCompile(`(?s)<chat-summary\b([^>]*)>(.*?)</chat-summary>`)
	commandTagRe       = regexp.MustCompile(`(?s)<command\b([^>]*)>(.*?)</command>`)

	attrRe = regexp.MustCompile(`([a-zA-Z][\w-]*)="([^"]*)"`)
)

// Extract parses all action tags out of text. Malformed or attribute-less
// tags are skipped with a warning; extraction of the remaining tags always
// continues.
func Extract(text string) *Extraction {
	ex := &Extraction{}
	ex.extractWrites(text)
	ex.extractRenames(text)
	ex.extractDeletes(text)
	ex.extractAddDependencies(text)
	ex.extractExecuteSQL(text)
	ex.extractSearchReplaces(text)
	ex.extractChatSummaries(text)
	ex.extractCommands(text)
	return ex
}

func (ex *Extraction) warnf(format string, v ...any) {
	ex.Warnings = append(ex.Warnings, fmt.Sprintf(format, v...))
}

func (ex *Extraction) extractWrites(text string) {
	for _, m := range writeTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		p := filesystem.NormalizeRelPath(attrs["path"])
		if p == "" {
			ex.warnf("write tag missing path attribute, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:        actions.KindWrite,
			Path:        p,
			Content:     stripCodeFence(m[2]),
			Description: attrs["description"],
		})
	}
}

func (ex *Extraction) extractRenames(text string) {
	for _, m := range renameTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		from := filesystem.NormalizeRelPath(attrs["from"])
		to := filesystem.NormalizeRelPath(attrs["to"])
		if from == "" || to == "" {
			ex.warnf("rename tag missing from/to attributes, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:     actions.KindRename,
			FromPath: from,
			ToPath:   to,
		})
	}
}

func (ex *Extraction) extractDeletes(text string) {
	for _, m := range deleteTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		p := filesystem.NormalizeRelPath(attrs["path"])
		if p == "" {
			ex.warnf("delete tag missing path attribute, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind: actions.KindDelete,
			Path: p,
		})
	}
}

func (ex *Extraction) extractAddDependencies(text string) {
	for _, m := range addDependencyTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		pkgs := strings.Fields(attrs["packages"])
		if len(pkgs) == 0 {
			ex.warnf("add-dependency tag missing packages attribute, skipping")
			continue
		}
		// Each tag keeps its own internal order; duplicates across tags are
		// deliberately preserved and concatenated by the orchestrator.
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:     actions.KindAddDependency,
			Packages: pkgs,
		})
	}
}

func (ex *Extraction) extractExecuteSQL(text string) {
	for _, m := range executeSQLTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		stmt := stripCodeFence(m[2])
		if strings.TrimSpace(stmt) == "" {
			ex.warnf("execute-sql tag has an empty statement, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:        actions.KindExecuteSQL,
			Content:     stmt,
			Description: attrs["description"],
		})
	}
}

func (ex *Extraction) extractSearchReplaces(text string) {
	for _, m := range searchReplaceTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		p := filesystem.NormalizeRelPath(attrs["path"])
		if p == "" {
			ex.warnf("search-replace tag missing path attribute, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:        actions.KindSearchReplace,
			Path:        p,
			Content:     stripCodeFence(m[2]),
			Description: attrs["description"],
		})
	}
}

func (ex *Extraction) extractChatSummaries(text string) {
	for _, m := range chatSummaryTagRe.FindAllStringSubmatch(text, -1) {
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:    actions.KindChatSummary,
			Content: strings.TrimSpace(m[2]),
		})
	}
}

func (ex *Extraction) extractCommands(text string) {
	for _, m := range commandTagRe.FindAllStringSubmatch(text, -1) {
		attrs := parseAttrs(m[1])
		if attrs["type"] == "" {
			ex.warnf("command tag missing type attribute, skipping")
			continue
		}
		ex.Actions = append(ex.Actions, actions.Action{
			Kind:        actions.KindCommand,
			CommandType: attrs["type"],
		})
	}
}

// parseAttrs parses double-quoted key="value" attributes from the inside of
// an open tag.
func parseAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(raw, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// stripCodeFence cleans a tag body: a leading line that opens a fenced code
// block is removed, and if the last non-empty line is a matching closer it is
// removed too. Every inner line, including blank ones, is kept intact.
func stripCodeFence(body string) string {
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")
	lines := strings.Split(body, "\n")

	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}

	last := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			last = i
			break
		}
	}
	if last >= 0 && strings.TrimSpace(lines[last]) == "```" {
		lines = append(lines[:last], lines[last+1:]...)
	}

	return strings.TrimSuffix(strings.Join(lines, "\n"), "\n")
}
