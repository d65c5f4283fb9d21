// Package patcher applies search/replace rule sets to file content. It is a
// pure string transform: the orchestrator's real run and the sandbox's dry
// run both call Apply and branch on the same Failure shape, so the only
// difference between them is whether the result is persisted.
package patcher

import (
	"fmt"
	"strings"
)

// Rule block markers. Each rule is a conflict-marker block:
//
//	<<<<<<< SEARCH
//	old text
//	=======
//	new text
//	>>>>>>> REPLACE
const (
	searchMarker  = "<<<<<<< SEARCH"
	divideMarker  = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// Reason classifies why a rule set could not be applied.
type Reason int

const (
	// ReasonMalformed means the rule text itself could not be parsed.
	ReasonMalformed Reason = iota + 1
	// ReasonNoMatch means a rule's search text was not found in the current
	// content. Re-applying an already-applied rule set fails this way rather
	// than silently succeeding.
	ReasonNoMatch
	// ReasonAmbiguous means a rule's search text occurs more than once in the
	// current content, so the target is not unique.
	ReasonAmbiguous
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed-rule-syntax"
	case ReasonNoMatch:
		return "target-not-found"
	case ReasonAmbiguous:
		return "target-ambiguous"
	}
	return "unknown"
}

// Failure describes why Apply could not produce new content.
type Failure struct {
	Reason    Reason
	RuleIndex int // zero-based index of the offending rule, -1 for parse-level failures
	Detail    string
}

func (f *Failure) Error() string {
	if f.RuleIndex >= 0 {
		return fmt.Sprintf("%s (rule %d): %s", f.Reason, f.RuleIndex+1, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

// Rule is a single search/replace pair. Both sides may contain literal
// newlines.
type Rule struct {
	Search  string
	Replace string
}

// ParseRules parses the textual rule set into ordered rules. Text outside
// marker blocks is ignored; an unterminated block or an empty rule set is
// malformed.
func ParseRules(rules string) ([]Rule, *Failure) {
	lines := strings.Split(rules, "\n")
	var parsed []Rule

	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) != searchMarker {
			i++
			continue
		}
		i++
		var search []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != divideMarker {
			if strings.TrimSpace(lines[i]) == searchMarker || strings.TrimSpace(lines[i]) == replaceMarker {
				return nil, &Failure{Reason: ReasonMalformed, RuleIndex: len(parsed), Detail: "missing ======= divider"}
			}
			search = append(search, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, &Failure{Reason: ReasonMalformed, RuleIndex: len(parsed), Detail: "missing ======= divider"}
		}
		i++
		var replace []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != replaceMarker {
			if strings.TrimSpace(lines[i]) == searchMarker {
				return nil, &Failure{Reason: ReasonMalformed, RuleIndex: len(parsed), Detail: "missing >>>>>>> REPLACE terminator"}
			}
			replace = append(replace, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, &Failure{Reason: ReasonMalformed, RuleIndex: len(parsed), Detail: "missing >>>>>>> REPLACE terminator"}
		}
		i++

		searchText := strings.Join(search, "\n")
		if searchText == "" {
			return nil, &Failure{Reason: ReasonMalformed, RuleIndex: len(parsed), Detail: "empty search text"}
		}
		parsed = append(parsed, Rule{Search: searchText, Replace: strings.Join(replace, "\n")})
	}

	if len(parsed) == 0 {
		return nil, &Failure{Reason: ReasonMalformed, RuleIndex: -1, Detail: "no search/replace blocks found"}
	}
	return parsed, nil
}

// Apply runs every rule in order against the content. Each rule must locate
// exactly one occurrence of its search text in the current content, where
// "current" means the content as already transformed by earlier rules in the
// same call. The first rule that fails aborts the whole application.
func Apply(original, rules string) (string, *Failure) {
	parsed, fail := ParseRules(rules)
	if fail != nil {
		return "", fail
	}

	content := original
	for idx, rule := range parsed {
		switch strings.Count(content, rule.Search) {
		case 0:
			return "", &Failure{Reason: ReasonNoMatch, RuleIndex: idx, Detail: firstLine(rule.Search)}
		case 1:
			content = strings.Replace(content, rule.Search, rule.Replace, 1)
		default:
			return "", &Failure{Reason: ReasonAmbiguous, RuleIndex: idx, Detail: firstLine(rule.Search)}
		}
	}
	return content, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
