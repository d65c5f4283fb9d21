// Package orchestrator coordinates one pipeline invocation: it loads the
// message and project, extracts actions from the response text, runs the
// advisory compile check, applies the actions in a fixed step order, commits
// the result, and writes warnings/errors back onto the stored message.
//
// The step order is load-bearing and independent of tag order in the
// response: deletes run before renames so a rename target is free, renames
// run before writes so edits land on the final path, and search-replace runs
// before plain writes because a write is the most authoritative action for a
// path. Failures inside a step are aggregated into the report and execution
// continues; only the conditions named in Execute abort the invocation.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/actions"
	"github.com/loomworks/loom/pkg/commits"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/deps"
	"github.com/loomworks/loom/pkg/logging"
	"github.com/loomworks/loom/pkg/parser"
	"github.com/loomworks/loom/pkg/remote"
	"github.com/loomworks/loom/pkg/sandbox"
	"github.com/loomworks/loom/pkg/store"
)

// MessageStore is the persistence surface the orchestrator consumes.
// *store.Store implements it; tests substitute a fake.
type MessageStore interface {
	GetMessage(id, role, chatID string) (*store.Message, error)
	UpdateMessageContent(id, content string) error
	ApproveMessage(id string) error
	SetCommitHash(id, hash string) error
	GetProject(id string) (*store.Project, error)
	TakeUploads(chatID string) (map[string]string, error)
}

// CompileChecker runs the speculative type-check. *sandbox.Checker implements
// it.
type CompileChecker interface {
	Check(ctx context.Context, ov sandbox.Overlay, projectRoot, cacheDir string) (sandbox.DiagnosticReport, error)
}

// Orchestrator executes parsed actions against a real project. Invocations
// for different chats are independent and may run concurrently; a single
// invocation runs its steps strictly sequentially.
type Orchestrator struct {
	Store     MessageStore
	VCS       commits.VCS
	Remote    remote.Client
	Installer deps.Installer
	// Checker is optional; nil skips the advisory compile check.
	Checker CompileChecker
	Config  *config.Config
	Log     *logging.Logger
}

// Request identifies the message whose actions should be applied.
type Request struct {
	ChatID    string
	MessageID string
	ProjectID string
}

// runState threads the accumulated result through the steps.
type runState struct {
	written  []string
	renamed  []string // destination paths
	deleted  []string
	staged   []string // every path to stage, including rename sources
	packages []string
	sqlCount int
	report   actions.Report
}

func (st *runState) hasChanges() bool {
	return len(st.written) > 0 || len(st.renamed) > 0 || len(st.deleted) > 0 || len(st.packages) > 0
}

// Execute runs the whole pipeline for one response. It returns an error only
// for the fatal conditions: the message or project cannot be loaded, or the
// database branch snapshot fails. Everything else is aggregated into the
// result. Accumulated warnings/errors are flushed onto the stored message
// content on every exit path, including fatal ones.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*actions.ExecutionResult, error) {
	msg, err := o.Store.GetMessage(req.MessageID, "assistant", req.ChatID)
	if err != nil {
		return nil, fmt.Errorf("no linked message: %w", err)
	}
	proj, err := o.Store.GetProject(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("no linked project: %w", err)
	}

	// Pending uploads are consumed and cleared up front so a stale token can
	// never substitute content into a later turn.
	uploads, err := o.Store.TakeUploads(req.ChatID)
	if err != nil {
		o.Log.LogError(fmt.Errorf("failed to read pending uploads: %w", err))
		uploads = nil
	}

	st := &runState{}
	defer o.flushAnnotations(msg, st)

	ext := parser.Extract(msg.Content)
	for _, w := range ext.Warnings {
		st.report.Warnf("extraction: %s", w)
	}
	grouped := groupByKind(ext.Actions)

	o.compileCheck(ctx, grouped, proj, st)

	// Step 1: database branch snapshot. The only fail-fast step: later writes
	// assume branch versioning is functioning, so a snapshot failure aborts
	// the whole action.
	if proj.DatabaseBranchID != "" {
		if err := o.snapshotBranch(ctx, proj); err != nil {
			st.report.Errorf("database branch snapshot failed: %v", err)
			return nil, fmt.Errorf("database branch snapshot failed: %w", err)
		}
	}

	o.executeSQL(ctx, grouped[actions.KindExecuteSQL], proj, st)
	o.installDependencies(ctx, grouped[actions.KindAddDependency], proj, st)
	o.applyDeletes(ctx, grouped[actions.KindDelete], proj, st)
	o.applyRenames(ctx, grouped[actions.KindRename], proj, st)
	o.applySearchReplaces(ctx, grouped[actions.KindSearchReplace], proj, st)
	o.applyWrites(ctx, grouped[actions.KindWrite], proj, uploads, st)

	result := &actions.ExecutionResult{
		FilesChanged: st.hasChanges(),
		WrittenPaths: st.written,
		RenamedPaths: st.renamed,
		DeletedPaths: st.deleted,
	}

	if st.hasChanges() {
		manager := commits.NewManager(o.VCS, o.Log)
		outcome, err := manager.Commit(commits.Summary{
			WrittenPaths: st.written,
			RenamedPaths: st.renamed,
			DeletedPaths: st.deleted,
			StagePaths:   st.staged,
			Packages:     len(st.packages),
			SQLCount:     st.sqlCount,
		})
		if err != nil {
			st.report.Errorf("commit failed: %v", err)
		} else {
			result.CommitHash = outcome.CommitHash
			result.OutOfBandFiles = outcome.OutOfBandFiles
			if outcome.AmendError != "" {
				st.report.Warnf("out-of-band amend failed (%d file(s)): %s",
					len(outcome.OutOfBandFiles), outcome.AmendError)
			}
			if err := o.Store.SetCommitHash(msg.ID, outcome.CommitHash); err != nil {
				st.report.Errorf("failed to record commit hash: %v", err)
			}
		}
	}

	// Terminal step, taken whether or not anything changed.
	if err := o.Store.ApproveMessage(msg.ID); err != nil {
		st.report.Errorf("failed to approve message: %v", err)
	}

	result.Warnings = st.report.Warnings
	result.Errors = st.report.Errors
	return result, nil
}

// snapshotBranch records the database branch state keyed to the current
// version of the project, preferring the git HEAD as the version key.
func (o *Orchestrator) snapshotBranch(ctx context.Context, proj *store.Project) error {
	version := time.Now().UTC().Format(time.RFC3339)
	if o.VCS != nil {
		if hash, err := o.VCS.HeadHash(); err == nil && hash != "" {
			version = hash
		}
	}
	return o.Remote.SnapshotBranch(ctx, proj.DatabaseProjectID, proj.DatabaseBranchID, version)
}

func groupByKind(list []actions.Action) map[actions.Kind][]actions.Action {
	grouped := make(map[actions.Kind][]actions.Action)
	for _, a := range list {
		grouped[a.Kind] = append(grouped[a.Kind], a)
	}
	return grouped
}
