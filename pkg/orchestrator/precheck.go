package orchestrator

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/loomworks/loom/pkg/actions"
	"github.com/loomworks/loom/pkg/filesystem"
	"github.com/loomworks/loom/pkg/patcher"
	"github.com/loomworks/loom/pkg/sandbox"
	"github.com/loomworks/loom/pkg/store"
)

// compileCheck runs the advisory pre-flight: it builds a virtual overlay of
// what the actions are about to do and type-checks it in the sandbox. Its
// findings, and any failure of the check itself, become warnings; they never
// gate the real execution.
func (o *Orchestrator) compileCheck(ctx context.Context, grouped map[actions.Kind][]actions.Action, proj *store.Project, st *runState) {
	if o.Checker == nil || !o.Config.EnableCompileCheck {
		return
	}
	ov := o.buildOverlay(grouped, proj, st)
	if ov.Empty() {
		return
	}

	o.Log.LogProcessStep("Running speculative compile check")
	cacheDir := o.Config.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(proj.RootPath, cacheDir)
	}
	report, err := o.Checker.Check(ctx, ov, proj.RootPath, cacheDir)
	if err != nil {
		var werr *sandbox.WorkerError
		if errors.As(err, &werr) {
			st.report.Warnf("compile check did not complete: %v", werr)
		} else {
			st.report.Warnf("compile check failed: %v", err)
		}
		return
	}
	for file, diags := range report {
		for _, d := range diags {
			st.report.Warnf("compile check: %s(%d,%d): %s %s", file, d.Line, d.Column, d.Severity, d.Message)
		}
	}
}

// buildOverlay assembles the virtual changes the response will make. Patch
// rules are dry-run against the current file content here; a dry-run issue is
// surfaced as an advisory warning (unlike real-run search-replace failures,
// which stay silent).
func (o *Orchestrator) buildOverlay(grouped map[actions.Kind][]actions.Action, proj *store.Project, st *runState) sandbox.Overlay {
	ov := sandbox.Overlay{
		Writes:  make(map[string]string),
		Renames: make(map[string]string),
	}
	for _, a := range grouped[actions.KindDelete] {
		ov.Deletes = append(ov.Deletes, a.Path)
	}
	for _, a := range grouped[actions.KindRename] {
		ov.Renames[a.FromPath] = a.ToPath
	}
	for _, a := range grouped[actions.KindSearchReplace] {
		abs := filepath.Join(proj.RootPath, filepath.FromSlash(a.Path))
		original, err := filesystem.ReadFile(abs)
		if err != nil {
			st.report.Warnf("search-replace dry run: target %s missing", a.Path)
			continue
		}
		patched, fail := patcher.Apply(original, a.Content)
		if fail != nil {
			st.report.Warnf("search-replace dry run on %s: %v", a.Path, fail)
			continue
		}
		ov.Writes[a.Path] = patched
	}
	for _, a := range grouped[actions.KindWrite] {
		ov.Writes[a.Path] = a.Content
	}
	return ov
}
