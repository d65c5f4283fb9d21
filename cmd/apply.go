package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/deps"
	"github.com/loomworks/loom/pkg/git"
	"github.com/loomworks/loom/pkg/logging"
	"github.com/loomworks/loom/pkg/orchestrator"
	"github.com/loomworks/loom/pkg/remote"
	"github.com/loomworks/loom/pkg/sandbox"
	"github.com/loomworks/loom/pkg/store"
)

var (
	applyDBPath       string
	applyChatID       string
	applyMessageID    string
	applyProjectID    string
	applyResponseFile string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a stored response's actions to its project",
	Long: `Apply loads the message from the store, extracts its action tags, runs the
advisory compile check, executes the actions in pipeline order, and commits
the resulting file changes. With --response-file the message content is
replaced from the file first, which is handy for replays and testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(applyDBPath)
		if err != nil {
			return err
		}
		defer s.Close()

		if applyResponseFile != "" {
			data, err := os.ReadFile(applyResponseFile)
			if err != nil {
				return fmt.Errorf("failed to read response file: %w", err)
			}
			if err := s.PutMessage(&store.Message{
				ID:      applyMessageID,
				ChatID:  applyChatID,
				Role:    "assistant",
				Content: string(data),
			}); err != nil {
				return err
			}
		}

		proj, err := s.GetProject(applyProjectID)
		if err != nil {
			return err
		}
		cfg, err := config.Load(filepath.Join(proj.RootPath, config.DefaultPath))
		if err != nil {
			return err
		}

		o := &orchestrator.Orchestrator{
			Store: s,
			VCS: &git.Runner{
				Dir:           proj.RootPath,
				CommitTimeout: time.Duration(cfg.CommitTimeoutSecs) * time.Second,
			},
			Remote:    remote.NewHTTPClient(cfg.RemoteEndpoint, cfg.RemoteAPIKey),
			Installer: deps.NewCLIInstaller(cfg.PackageManager),
			Checker: &sandbox.Checker{
				Command: cfg.CheckerCommand,
				Timeout: time.Duration(cfg.CheckTimeoutSecs) * time.Second,
			},
			Config: cfg,
			Log:    logging.Get(),
		}

		result, err := o.Execute(cmd.Context(), orchestrator.Request{
			ChatID:    applyChatID,
			MessageID: applyMessageID,
			ProjectID: applyProjectID,
		})
		if err != nil {
			return err
		}

		if !result.FilesChanged {
			fmt.Println("No file changes.")
		} else {
			fmt.Printf("Wrote %d, renamed %d, deleted %d file(s).\n",
				len(result.WrittenPaths), len(result.RenamedPaths), len(result.DeletedPaths))
			if result.CommitHash != "" {
				fmt.Printf("Committed as %s\n", result.CommitHash)
			}
			if len(result.OutOfBandFiles) > 0 {
				fmt.Printf("Included %d out-of-band file(s): %s\n",
					len(result.OutOfBandFiles), strings.Join(result.OutOfBandFiles, ", "))
			}
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Printf("error: %s\n", e)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyDBPath, "db", ".loom/loom.db", "path to the loom database")
	applyCmd.Flags().StringVar(&applyChatID, "chat", "", "chat id owning the message")
	applyCmd.Flags().StringVar(&applyMessageID, "message", "", "message id to apply")
	applyCmd.Flags().StringVar(&applyProjectID, "project", "", "project id to apply against")
	applyCmd.Flags().StringVar(&applyResponseFile, "response-file", "", "replace the message content from this file before applying")
	_ = applyCmd.MarkFlagRequired("chat")
	_ = applyCmd.MarkFlagRequired("message")
	_ = applyCmd.MarkFlagRequired("project")
}
