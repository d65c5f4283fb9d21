package patcher

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeStats summarizes how much a patch changed a file, for logs and the
// execution report.
func ChangeStats(filename, before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var additions, deletions int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(d.Text)
		}
	}
	return fmt.Sprintf("%s +%d -%d", filename, additions, deletions)
}
