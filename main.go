package main

import (
	"os"

	"github.com/loomworks/loom/cmd"
	"github.com/loomworks/loom/pkg/logging"
)

func main() {
	logger := logging.Get()
	defer func() {
		if err := logger.Close(); err != nil {
			os.Stderr.WriteString("Error closing logger: " + err.Error() + "\n")
		}
	}()

	if err := cmd.Execute(); err != nil {
		logger.Logf("Application error: %v", err)
		os.Exit(1)
	}
}
