package actions

import "fmt"

// Report accumulates the issues one pipeline invocation hits. Warnings and
// Errors are flushed onto the stored message content as annotations; Silent
// entries are only ever logged.
type Report struct {
	Warnings []string
	Errors   []string
	Silent   []string
}

// Warnf records a user-visible warning.
func (r *Report) Warnf(format string, v ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, v...))
}

// Errorf records a user-visible, non-fatal error.
func (r *Report) Errorf(format string, v ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, v...))
}

// Silentf records an issue that is logged but never annotated onto the
// message.
func (r *Report) Silentf(format string, v ...any) {
	r.Silent = append(r.Silent, fmt.Sprintf(format, v...))
}

// ExecutionResult is what one invocation returns to its caller.
type ExecutionResult struct {
	// FilesChanged reports whether anything was committed.
	FilesChanged bool
	WrittenPaths []string
	RenamedPaths []string
	DeletedPaths []string
	// Warnings and Errors mirror the annotations written to the message.
	Warnings []string
	Errors   []string
	// OutOfBandFiles are changes made outside the pipeline that were folded
	// into the commit.
	OutOfBandFiles []string
	CommitHash     string
}
