// Package git wraps the git CLI for the staging, commit, and amend operations
// the commit manager needs. All commands run against a fixed repository
// directory and surface git's own output on failure.
package git

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes git commands in a repository directory.
type Runner struct {
	// Dir is the repository root all commands run in.
	Dir string
	// CommitTimeout bounds commit and amend calls; zero means no bound.
	CommitTimeout time.Duration
}

func (r *Runner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// runWithTimeout guards long-running git invocations (commit hooks can hang).
func (r *Runner) runWithTimeout(timeout time.Duration, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	if timeout <= 0 {
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	done := make(chan error, 1)
	go func() {
		out, err := cmd.CombinedOutput()
		if err != nil {
			err = fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		return fmt.Errorf("git %s timed out after %s", args[0], timeout)
	}
}

// Add stages the given paths. Missing paths are staged as deletions, so the
// same call covers writes, rename sources, and removed files.
func (r *Runner) Add(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, paths...)
	_, err := r.run(args...)
	return err
}

// AddAll stages everything in the working tree.
func (r *Runner) AddAll() error {
	_, err := r.run("add", "-A")
	return err
}

// Commit commits staged changes with the given message.
func (r *Runner) Commit(message string) error {
	return r.runWithTimeout(r.CommitTimeout, "commit", "-m", message)
}

// Amend replaces the previous commit, keeping its author, with a new message
// and whatever is currently staged.
func (r *Runner) Amend(message string) error {
	return r.runWithTimeout(r.CommitTimeout, "commit", "--amend", "-m", message)
}

// HeadHash returns the current HEAD commit hash.
func (r *Runner) HeadHash() (string, error) {
	return r.run("rev-parse", "HEAD")
}

// LastCommitMessage returns the full message of the HEAD commit.
func (r *Runner) LastCommitMessage() (string, error) {
	return r.run("log", "-1", "--pretty=%B")
}

// UncommittedFiles lists paths with uncommitted changes, staged or not,
// including untracked files. Used to detect edits made outside the pipeline.
func (r *Runner) UncommittedFiles() ([]string, error) {
	out, err := r.run("status", "--porcelain", "-u")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		// XY PATH; renames show as "R  old -> new"
		p := strings.TrimSpace(line[3:])
		if i := strings.Index(p, " -> "); i >= 0 {
			p = p[i+4:]
		}
		if p != "" {
			files = append(files, p)
		}
	}
	return files, nil
}
