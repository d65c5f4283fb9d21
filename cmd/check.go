package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/actions"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/parser"
	"github.com/loomworks/loom/pkg/sandbox"
)

var (
	checkRoot         string
	checkResponseFile string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the compile-check sandbox without applying anything",
	Long: `Check builds the virtual overlay a response would produce (or an empty one
when no response is given) and type-checks it in the isolated sandbox. The
real project tree is never modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(filepath.Join(checkRoot, config.DefaultPath))
		if err != nil {
			return err
		}

		ov := sandbox.Overlay{Writes: map[string]string{}, Renames: map[string]string{}}
		if checkResponseFile != "" {
			data, err := os.ReadFile(checkResponseFile)
			if err != nil {
				return fmt.Errorf("failed to read response file: %w", err)
			}
			for _, a := range parser.Extract(string(data)).Actions {
				switch a.Kind {
				case actions.KindWrite:
					ov.Writes[a.Path] = a.Content
				case actions.KindRename:
					ov.Renames[a.FromPath] = a.ToPath
				case actions.KindDelete:
					ov.Deletes = append(ov.Deletes, a.Path)
				}
			}
		}

		checker := &sandbox.Checker{
			Command: cfg.CheckerCommand,
			Timeout: time.Duration(cfg.CheckTimeoutSecs) * time.Second,
		}
		report, err := checker.Check(cmd.Context(), ov, checkRoot, filepath.Join(checkRoot, cfg.CacheDir))
		if err != nil {
			return err
		}
		if report.Count() == 0 {
			fmt.Println("Compile check clean.")
			return nil
		}
		for file, diags := range report {
			for _, d := range diags {
				fmt.Printf("%s(%d,%d): %s %s\n", file, d.Line, d.Column, d.Severity, d.Message)
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkRoot, "root", ".", "project root to check")
	checkCmd.Flags().StringVar(&checkResponseFile, "response-file", "", "response whose changes should be checked speculatively")
}
