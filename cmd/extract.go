package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/parser"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Parse a response and print the extracted actions",
	Long: `Extract parses the action tags out of a response (from the given file, or
stdin when omitted) and prints them as JSON, together with any extraction
warnings. Nothing is executed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		ex := parser.Extract(string(data))
		out, err := json.MarshalIndent(ex, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
