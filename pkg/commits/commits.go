// Package commits turns one pipeline invocation's file changes into a single
// descriptive git commit and folds in any edits the user made out-of-band
// while the pipeline ran.
package commits

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/logging"
)

// messagePrefix marks commits produced by the pipeline.
const messagePrefix = "[loom]"

// VCS is the version-control surface the manager needs. *git.Runner
// implements it; tests substitute a fake.
type VCS interface {
	Add(paths ...string) error
	AddAll() error
	Commit(message string) error
	Amend(message string) error
	HeadHash() (string, error)
	LastCommitMessage() (string, error)
	UncommittedFiles() ([]string, error)
}

// Summary is what the orchestrator hands over for committing.
type Summary struct {
	WrittenPaths []string
	RenamedPaths []string // destination paths; sources are staged via StagePaths
	DeletedPaths []string
	StagePaths   []string // every path touched, including rename sources
	Packages     int
	SQLCount     int
}

// Outcome reports the commit and any advisory follow-up data.
type Outcome struct {
	CommitHash string
	// OutOfBandFiles are working-tree changes detected after the primary
	// commit and folded in by amending.
	OutOfBandFiles []string
	// AmendError is advisory: the primary commit already succeeded, so a
	// failed amend is surfaced, not fatal.
	AmendError string
}

// Manager commits pipeline changes.
type Manager struct {
	vcs VCS
	log *logging.Logger
}

// NewManager returns a commit manager over the given VCS.
func NewManager(vcs VCS, log *logging.Logger) *Manager {
	return &Manager{vcs: vcs, log: log}
}

// ComposeMessage builds the human-readable commit message summarizing the
// turn, in pipeline execution order.
func ComposeMessage(sum Summary) string {
	var parts []string
	if n := len(sum.DeletedPaths); n > 0 {
		parts = append(parts, fmt.Sprintf("deleted %d file(s)", n))
	}
	if n := len(sum.RenamedPaths); n > 0 {
		parts = append(parts, fmt.Sprintf("renamed %d file(s)", n))
	}
	if n := len(sum.WrittenPaths); n > 0 {
		parts = append(parts, fmt.Sprintf("wrote %d file(s)", n))
	}
	if sum.Packages > 0 {
		parts = append(parts, fmt.Sprintf("installed %d package(s)", sum.Packages))
	}
	if sum.SQLCount > 0 {
		parts = append(parts, fmt.Sprintf("executed %d SQL statement(s)", sum.SQLCount))
	}
	if len(parts) == 0 {
		parts = append(parts, "no file changes")
	}
	return messagePrefix + " " + strings.Join(parts, ", ")
}

// Commit stages the summary's paths, commits, and then sweeps up out-of-band
// working-tree changes into the same commit via amend. Only the primary
// commit can fail this call; everything after it is advisory.
func (m *Manager) Commit(sum Summary) (*Outcome, error) {
	if err := m.vcs.Add(sum.StagePaths...); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}

	message := ComposeMessage(sum)
	if err := m.vcs.Commit(message); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	hash, err := m.vcs.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("failed to read commit hash: %w", err)
	}
	outcome := &Outcome{CommitHash: hash}

	// Anything still dirty was changed outside this pipeline invocation.
	outOfBand, err := m.vcs.UncommittedFiles()
	if err != nil {
		outcome.AmendError = fmt.Sprintf("failed to list out-of-band files: %v", err)
		m.log.Logf("Commit amend skipped: %s", outcome.AmendError)
		return outcome, nil
	}
	if len(outOfBand) == 0 {
		return outcome, nil
	}

	outcome.OutOfBandFiles = outOfBand
	if err := m.amendOutOfBand(message, outOfBand); err != nil {
		outcome.AmendError = err.Error()
		m.log.Logf("Out-of-band amend failed for %d file(s): %v", len(outOfBand), err)
		return outcome, nil
	}

	if hash, err := m.vcs.HeadHash(); err == nil {
		outcome.CommitHash = hash
	}
	return outcome, nil
}

func (m *Manager) amendOutOfBand(primaryMessage string, files []string) error {
	if err := m.vcs.AddAll(); err != nil {
		return fmt.Errorf("failed to stage out-of-band files: %w", err)
	}
	message := primaryMessage
	if prev, err := m.vcs.LastCommitMessage(); err == nil && strings.TrimSpace(prev) != "" {
		message = strings.TrimSpace(prev)
	}
	message += fmt.Sprintf("\n\nIncludes %d file(s) changed outside this turn.", len(files))
	if err := m.vcs.Amend(message); err != nil {
		return fmt.Errorf("failed to amend commit: %w", err)
	}
	return nil
}
