// Package sandbox runs a speculative type-check of a project with a set of
// virtual changes applied, without mutating the real project tree. The check
// runs in a separate worker process with a hard wall-clock timeout so a
// hanging or crashing type-checker can never block or take down the caller.
// Its findings are advisory: callers report them, they never gate the write
// pipeline.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Diagnostic is one type-checker finding.
type Diagnostic struct {
	Severity string
	Line     int
	Column   int
	Message  string
}

// DiagnosticReport maps file paths (relative to the project root) to their
// ordered diagnostics. An empty report means the check came back clean.
type DiagnosticReport map[string][]Diagnostic

// Count returns the total number of diagnostics in the report.
func (r DiagnosticReport) Count() int {
	n := 0
	for _, ds := range r {
		n += len(ds)
	}
	return n
}

// WorkerErrorKind distinguishes how a check run failed, as opposed to what it
// found.
type WorkerErrorKind int

const (
	// WorkerTimeout means the wall-clock budget elapsed and the worker was
	// killed.
	WorkerTimeout WorkerErrorKind = iota + 1
	// WorkerAbnormalExit means the worker died without producing a diagnostic
	// verdict (signal, spawn failure).
	WorkerAbnormalExit
	// WorkerSetupFailed means the scratch overlay could not be prepared.
	WorkerSetupFailed
)

// WorkerError is a check run failure, distinct from a report with findings.
type WorkerError struct {
	Kind WorkerErrorKind
	Err  error
}

func (e *WorkerError) Error() string {
	switch e.Kind {
	case WorkerTimeout:
		return fmt.Sprintf("compile check timed out: %v", e.Err)
	case WorkerAbnormalExit:
		return fmt.Sprintf("compile check worker exited abnormally: %v", e.Err)
	default:
		return fmt.Sprintf("compile check setup failed: %v", e.Err)
	}
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Checker runs the configured type-checker command over materialized
// overlays.
type Checker struct {
	// Command is the type-checker invocation, run with the scratch overlay as
	// its working directory. When it looks like a tsc invocation the
	// incremental build-info flag is appended automatically.
	Command []string
	// Timeout bounds one check run end to end.
	Timeout time.Duration
}

// Check materializes the overlay on top of projectRoot in a scratch directory
// under cacheDir, type-checks it, and returns the diagnostics. A non-empty
// report with a nil error is the normal "found problems" outcome; a
// *WorkerError means the check itself could not run to a verdict.
func (c *Checker) Check(ctx context.Context, ov Overlay, projectRoot, cacheDir string) (DiagnosticReport, error) {
	if len(c.Command) == 0 {
		return nil, &WorkerError{Kind: WorkerSetupFailed, Err: errors.New("no checker command configured")}
	}

	scratch := filepath.Join(cacheDir, "overlay-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, &WorkerError{Kind: WorkerSetupFailed, Err: err}
	}
	defer os.RemoveAll(scratch)

	if err := materialize(projectRoot, scratch, ov); err != nil {
		return nil, &WorkerError{Kind: WorkerSetupFailed, Err: err}
	}

	args := append([]string(nil), c.Command[1:]...)
	if isTSC(c.Command) {
		buildInfoDir := filepath.Join(cacheDir, "tsbuildinfo")
		if err := os.MkdirAll(buildInfoDir, 0755); err == nil {
			args = append(args, "--tsBuildInfoFile", filepath.Join(buildInfoDir, cacheKey(projectRoot)+".tsbuildinfo"))
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	// The worker never outlives its request: cancel kills it on every exit
	// path, including after a normal result.
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Command[0], args...)
	cmd.Dir = scratch

	type workerResult struct {
		output []byte
		err    error
	}
	done := make(chan workerResult, 1)
	go func() {
		out, err := cmd.CombinedOutput()
		done <- workerResult{output: out, err: err}
	}()

	res := <-done
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &WorkerError{Kind: WorkerTimeout, Err: fmt.Errorf("exceeded %s", timeout)}
	}
	if res.err != nil {
		var exitErr *exec.ExitError
		if errors.As(res.err, &exitErr) && exitErr.ExitCode() > 0 {
			// The checker ran to completion and reported problems; its output
			// is the verdict, not a worker failure.
			return parseDiagnostics(string(res.output)), nil
		}
		return nil, &WorkerError{Kind: WorkerAbnormalExit, Err: res.err}
	}
	return parseDiagnostics(string(res.output)), nil
}

func isTSC(command []string) bool {
	for _, part := range command {
		if part == "tsc" || filepath.Base(part) == "tsc" {
			return true
		}
	}
	return false
}
