// Package actions defines the typed actions extracted from a model response
// and the result/report shapes the pipeline produces while applying them.
package actions

// Kind discriminates the action variants.
type Kind string

const (
	// KindWrite replaces (or creates) a file with full content.
	KindWrite Kind = "write"
	// KindRename moves a file or directory.
	KindRename Kind = "rename"
	// KindDelete removes a file or directory.
	KindDelete Kind = "delete"
	// KindAddDependency installs packages with the project's package manager.
	KindAddDependency Kind = "add-dependency"
	// KindExecuteSQL runs a statement against the linked database project.
	KindExecuteSQL Kind = "execute-sql"
	// KindSearchReplace patches a file with search/replace rules.
	KindSearchReplace Kind = "search-replace"
	// KindChatSummary carries a short description of the turn; never executed.
	KindChatSummary Kind = "chat-summary"
	// KindCommand is an app-level signal (e.g. rebuild, restart); never
	// executed by this pipeline.
	KindCommand Kind = "command"
)

// Action is one extracted action. Which fields are meaningful depends on
// Kind; the zero value of the rest is ignored.
type Action struct {
	Kind Kind `json:"kind"`

	// Path targets write, delete, and search-replace actions.
	Path string `json:"path,omitempty"`
	// FromPath/ToPath target rename actions.
	FromPath string `json:"from,omitempty"`
	ToPath   string `json:"to,omitempty"`
	// Content is the file body (write), statement (execute-sql), rule text
	// (search-replace), or summary text (chat-summary).
	Content string `json:"content,omitempty"`
	// Description is the optional human-readable label some tags carry.
	Description string `json:"description,omitempty"`
	// Packages lists packages for add-dependency actions.
	Packages []string `json:"packages,omitempty"`
	// CommandType is the command tag's type attribute.
	CommandType string `json:"command_type,omitempty"`
}
