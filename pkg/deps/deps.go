// Package deps invokes the project's package manager to install dependencies
// requested by add-dependency actions.
package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/loomworks/loom/pkg/filesystem"
)

// InstallResult carries the raw tool output so install failures can be
// reported verbatim.
type InstallResult struct {
	Stdout string
	Stderr string
}

// Installer installs packages into the project at cwd. The orchestrator
// invokes it exactly once per response with the full concatenated package
// list.
type Installer interface {
	Install(ctx context.Context, packages []string, cwd string) (*InstallResult, error)
}

// CLIInstaller shells out to the preferred package manager and falls back to
// npm with --legacy-peer-deps when the preferred tool fails.
type CLIInstaller struct {
	// Preferred is the first tool tried, e.g. "pnpm".
	Preferred string
	// runCommand is swappable for tests.
	runCommand func(ctx context.Context, cwd, name string, args ...string) (string, string, error)
}

// NewCLIInstaller returns an installer preferring the given tool.
func NewCLIInstaller(preferred string) *CLIInstaller {
	return &CLIInstaller{Preferred: preferred, runCommand: runCommand}
}

func runCommand(ctx context.Context, cwd, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Install runs `<preferred> add pkgs...`; on failure it retries with
// `npm install --legacy-peer-deps pkgs...`. The returned result holds the
// output of whichever invocation ran last.
func (i *CLIInstaller) Install(ctx context.Context, packages []string, cwd string) (*InstallResult, error) {
	if len(packages) == 0 {
		return &InstallResult{}, nil
	}
	run := i.runCommand
	if run == nil {
		run = runCommand
	}

	tool := i.Preferred
	if tool == "" {
		tool = "pnpm"
	}
	stdout, stderr, err := run(ctx, cwd, tool, append([]string{"add"}, packages...)...)
	if err == nil {
		return &InstallResult{Stdout: stdout, Stderr: stderr}, nil
	}

	stdout, stderr, err = run(ctx, cwd, "npm", append([]string{"install", "--legacy-peer-deps"}, packages...)...)
	if err != nil {
		return &InstallResult{Stdout: stdout, Stderr: stderr},
			fmt.Errorf("package install failed (%s, then npm fallback): %w", tool, err)
	}
	return &InstallResult{Stdout: stdout, Stderr: stderr}, nil
}

// manifestNames are the dependency manifest and lock files an install can
// touch. Whichever exist after the install are committed with the turn,
// regardless of install success.
var manifestNames = []string{"package.json", "pnpm-lock.yaml", "package-lock.json"}

// ManifestFiles returns the manifest/lock files present under root, as paths
// relative to root.
func ManifestFiles(root string) []string {
	var present []string
	for _, name := range manifestNames {
		if filesystem.FileExists(filepath.Join(root, name)) {
			present = append(present, name)
		}
	}
	return present
}
