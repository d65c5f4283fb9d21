package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileExists checks if a file or directory exists at the given path.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// IsDir reports whether the path exists and is a directory.
func IsDir(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.IsDir()
}

// EnsureDir creates the directory if it doesn't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SaveFile writes content to filename, creating parent directories as needed.
// If the file already exists with CRLF line endings, the new content keeps
// that style so the write does not churn every line of the file.
func SaveFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}

	out := []byte(content)
	if prev, err := os.ReadFile(filename); err == nil {
		if bytes.Contains(prev, []byte("\r\n")) && !bytes.Contains(out, []byte("\r\n")) {
			out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
		}
	}

	if err := os.WriteFile(filename, out, 0644); err != nil {
		return fmt.Errorf("could not write file %s: %w", filename, err)
	}
	return nil
}

// ReadFile reads the content of a file.
func ReadFile(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("could not read file %s: %w", filename, err)
	}
	return string(b), nil
}

// NormalizeRelPath normalizes a path coming out of a model response into a
// slash-separated path relative to the project root. Windows separators are
// converted, the path is cleaned, and any attempt to traverse above the root
// is stripped. Returns "" when nothing usable remains.
func NormalizeRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	if p == "." || p == ".." || p == "" {
		return ""
	}
	return p
}
