package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/actions"
	"github.com/loomworks/loom/pkg/deps"
	"github.com/loomworks/loom/pkg/filesystem"
	"github.com/loomworks/loom/pkg/patcher"
	"github.com/loomworks/loom/pkg/remote"
	"github.com/loomworks/loom/pkg/store"
)

// executeSQL runs step 2. Each statement failure is recorded and the next
// statement still runs; a bad statement must not block unrelated file writes
// in the same turn.
func (o *Orchestrator) executeSQL(ctx context.Context, sqlActions []actions.Action, proj *store.Project, st *runState) {
	if len(sqlActions) == 0 || proj.DatabaseProjectID == "" {
		return
	}
	o.Log.LogProcessStep("Executing SQL statements")
	for _, a := range sqlActions {
		st.sqlCount++
		if err := o.Remote.ExecuteSQL(ctx, proj.DatabaseProjectID, a.Content); err != nil {
			st.report.Errorf("SQL statement failed (%s): %v", summarize(a.Description, a.Content), err)
			continue
		}
		if o.Config.WriteMigrations {
			// A migration-file failure is its own non-fatal error; the
			// statement itself already ran.
			rel := filepath.ToSlash(filepath.Join(o.Config.MigrationsDir, migrationFileName(a.Description)))
			if err := filesystem.SaveFile(filepath.Join(proj.RootPath, filepath.FromSlash(rel)), a.Content+"\n"); err != nil {
				st.report.Errorf("failed to persist migration for executed SQL: %v", err)
				continue
			}
			st.written = append(st.written, rel)
			st.staged = append(st.staged, rel)
		}
	}
}

// installDependencies runs step 3: one install invocation with the full
// concatenated package list, duplicates preserved. Manifest and lock files
// present afterwards are committed with the turn regardless of install
// success.
func (o *Orchestrator) installDependencies(ctx context.Context, depActions []actions.Action, proj *store.Project, st *runState) {
	for _, a := range depActions {
		st.packages = append(st.packages, a.Packages...)
	}
	if len(st.packages) == 0 {
		return
	}
	o.Log.LogProcessStep("Installing dependencies: " + strings.Join(st.packages, " "))
	res, err := o.Installer.Install(ctx, st.packages, proj.RootPath)
	if err != nil {
		detail := ""
		if res != nil {
			detail = strings.TrimSpace(res.Stderr)
			if detail == "" {
				detail = strings.TrimSpace(res.Stdout)
			}
		}
		st.report.Errorf("dependency install failed: %v: %s", err, detail)
	}
	for _, rel := range deps.ManifestFiles(proj.RootPath) {
		st.written = append(st.written, rel)
		st.staged = append(st.staged, rel)
	}
}

// applyDeletes runs step 4. Missing paths are logged and skipped; directory
// removal is recursive. Deleting a deployable unit also requests remote
// teardown, whose failure is non-fatal because the local delete already
// succeeded.
func (o *Orchestrator) applyDeletes(ctx context.Context, deleteActions []actions.Action, proj *store.Project, st *runState) {
	for _, a := range deleteActions {
		abs := filepath.Join(proj.RootPath, filepath.FromSlash(a.Path))
		info, err := os.Stat(abs)
		if err != nil {
			o.Log.Logf("Delete target %s does not exist, skipping", a.Path)
			continue
		}
		wasDir := info.IsDir()
		if err := os.RemoveAll(abs); err != nil {
			st.report.Errorf("failed to delete %s: %v", a.Path, err)
			continue
		}
		st.deleted = append(st.deleted, a.Path)
		st.staged = append(st.staged, a.Path)
		o.Log.LogActionResult("delete", a.Path, nil)

		if proj.DatabaseProjectID != "" && remote.IsDeployableUnit(a.Path) {
			name := remote.FunctionName(a.Path, wasDir)
			if err := o.Remote.DeleteFunction(ctx, proj.DatabaseProjectID, name); err != nil {
				st.report.Errorf("failed to tear down function %s after deleting %s: %v", name, a.Path, err)
			}
		}
	}
}

// applyRenames runs step 5. A missing source is logged and skipped. When the
// old and/or new path is a deployable unit the remote side is updated too;
// those failures attach to the report but never roll back the local rename.
func (o *Orchestrator) applyRenames(ctx context.Context, renameActions []actions.Action, proj *store.Project, st *runState) {
	for _, a := range renameActions {
		src := filepath.Join(proj.RootPath, filepath.FromSlash(a.FromPath))
		dst := filepath.Join(proj.RootPath, filepath.FromSlash(a.ToPath))
		if !filesystem.FileExists(src) {
			o.Log.Logf("Rename source %s does not exist, skipping", a.FromPath)
			continue
		}
		if err := filesystem.EnsureDir(filepath.Dir(dst)); err != nil {
			st.report.Errorf("failed to prepare rename destination %s: %v", a.ToPath, err)
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			st.report.Errorf("failed to rename %s to %s: %v", a.FromPath, a.ToPath, err)
			continue
		}
		st.renamed = append(st.renamed, a.ToPath)
		st.staged = append(st.staged, a.FromPath, a.ToPath)
		o.Log.LogActionResult("rename", a.FromPath+" -> "+a.ToPath, nil)

		if proj.DatabaseProjectID == "" {
			continue
		}
		isDir := filesystem.IsDir(dst)
		if remote.IsDeployableUnit(a.FromPath) {
			name := remote.FunctionName(a.FromPath, isDir)
			if err := o.Remote.DeleteFunction(ctx, proj.DatabaseProjectID, name); err != nil {
				st.report.Warnf("failed to tear down function %s after rename: %v", name, err)
			}
		}
		if remote.IsDeployableUnit(a.ToPath) {
			o.deployUnit(ctx, proj, a.ToPath, "", st)
		}
	}
}

// applySearchReplaces runs step 6. A missing target or failed patch is
// logged and skipped without surfacing a user-visible warning: the model is
// expected to self-correct with a follow-up write or search-replace in a
// later turn. This asymmetry with the other steps is deliberate.
func (o *Orchestrator) applySearchReplaces(ctx context.Context, patchActions []actions.Action, proj *store.Project, st *runState) {
	for _, a := range patchActions {
		abs := filepath.Join(proj.RootPath, filepath.FromSlash(a.Path))
		original, err := filesystem.ReadFile(abs)
		if err != nil {
			st.report.Silentf("search-replace target %s missing: %v", a.Path, err)
			o.Log.Logf("Search-replace target %s missing, continuing", a.Path)
			continue
		}
		patched, fail := patcher.Apply(original, a.Content)
		if fail != nil {
			st.report.Silentf("search-replace on %s failed: %v", a.Path, fail)
			o.Log.Logf("Search-replace on %s failed (%v), continuing", a.Path, fail)
			continue
		}
		if err := filesystem.SaveFile(abs, patched); err != nil {
			st.report.Errorf("failed to save patched %s: %v", a.Path, err)
			continue
		}
		st.written = append(st.written, a.Path)
		st.staged = append(st.staged, a.Path)
		o.Log.Logf("Patched %s", patcher.ChangeStats(a.Path, original, patched))

		if proj.DatabaseProjectID != "" && remote.IsDeployableUnit(a.Path) {
			o.deployUnit(ctx, proj, a.Path, patched, st)
		}
	}
}

// applyWrites runs step 7, the final and most authoritative action for a
// path. A body that exactly matches a pending-upload token (after trimming)
// is substituted with the staged upload's content before writing.
func (o *Orchestrator) applyWrites(ctx context.Context, writeActions []actions.Action, proj *store.Project, uploads map[string]string, st *runState) {
	for _, a := range writeActions {
		content := a.Content
		if staged, ok := uploads[strings.TrimSpace(content)]; ok {
			data, err := os.ReadFile(staged)
			if err != nil {
				st.report.Errorf("failed to read uploaded content for %s: %v", a.Path, err)
				continue
			}
			content = string(data)
		}

		abs := filepath.Join(proj.RootPath, filepath.FromSlash(a.Path))
		if err := filesystem.SaveFile(abs, content); err != nil {
			st.report.Errorf("failed to write %s: %v", a.Path, err)
			continue
		}
		st.written = append(st.written, a.Path)
		st.staged = append(st.staged, a.Path)
		o.Log.LogActionResult("write", a.Path, nil)

		if proj.DatabaseProjectID != "" && remote.IsDeployableUnit(a.Path) {
			o.deployUnit(ctx, proj, a.Path, content, st)
		}
	}
}

// deployUnit redeploys the hosted function a path identifies. content may be
// passed when the caller already has it; otherwise the entry file is read
// from disk.
func (o *Orchestrator) deployUnit(ctx context.Context, proj *store.Project, relPath, content string, st *runState) {
	abs := filepath.Join(proj.RootPath, filepath.FromSlash(relPath))
	isDir := filesystem.IsDir(abs)
	name := remote.FunctionName(relPath, isDir)

	if content == "" {
		entry := abs
		if isDir {
			entry = filepath.Join(abs, "index.ts")
		}
		data, err := os.ReadFile(entry)
		if err != nil {
			st.report.Errorf("failed to read function entry for %s: %v", name, err)
			return
		}
		content = string(data)
	}
	if err := o.Remote.DeployFunction(ctx, proj.DatabaseProjectID, name, content); err != nil {
		st.report.Errorf("failed to deploy function %s: %v", name, err)
	}
}

func migrationFileName(description string) string {
	slug := slugify(description)
	if slug == "" {
		slug = uuid.NewString()[:8]
	}
	return time.Now().UTC().Format("20060102150405") + "_" + slug + ".sql"
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('_')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}

func summarize(description, content string) string {
	if description != "" {
		return description
	}
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}
