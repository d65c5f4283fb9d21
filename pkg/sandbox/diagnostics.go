package sandbox

import (
	"regexp"
	"strconv"
	"strings"
)

// tsc --pretty false prints one diagnostic per line:
//
//	src/app.ts(12,5): error TS2304: Cannot find name 'foo'.
var diagnosticLineRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.*)$`)

// parseDiagnostics parses type-checker output into a report. Lines that do
// not look like diagnostics (progress noise, npm banners) are ignored.
func parseDiagnostics(output string) DiagnosticReport {
	report := make(DiagnosticReport)
	for _, line := range strings.Split(output, "\n") {
		m := diagnosticLineRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		file := strings.ReplaceAll(m[1], "\\", "/")
		report[file] = append(report[file], Diagnostic{
			Severity: m[4],
			Line:     lineNo,
			Column:   colNo,
			Message:  m[5] + ": " + m[6],
		})
	}
	return report
}
