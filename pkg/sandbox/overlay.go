package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Overlay is a virtual set of changes applied conceptually on top of a real
// project directory. The sandbox materializes it into a scratch mirror; the
// real tree is never touched.
type Overlay struct {
	Writes  map[string]string // rel path -> new content
	Renames map[string]string // rel from -> rel to
	Deletes []string          // rel paths
}

// Empty reports whether the overlay changes nothing.
func (o Overlay) Empty() bool {
	return len(o.Writes) == 0 && len(o.Renames) == 0 && len(o.Deletes) == 0
}

// materialize mirrors projectRoot into scratchDir (hardlinking files where
// possible, copying otherwise) and applies the overlay on the mirror.
// Gitignored files and the .git directory are skipped: the type-checker does
// not need them and node_modules-sized trees would dominate the mirror cost.
func materialize(projectRoot, scratchDir string, ov Overlay) error {
	matcher := loadIgnoreMatcher(projectRoot)

	err := filepath.Walk(projectRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(projectRoot, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(scratchDir, 0755)
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := filepath.Join(scratchDir, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return linkOrCopy(p, dst)
	})
	if err != nil {
		return fmt.Errorf("failed to mirror project: %w", err)
	}

	for _, rel := range ov.Deletes {
		if err := os.RemoveAll(filepath.Join(scratchDir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("failed to apply virtual delete %s: %w", rel, err)
		}
	}
	for from, to := range ov.Renames {
		src := filepath.Join(scratchDir, filepath.FromSlash(from))
		dst := filepath.Join(scratchDir, filepath.FromSlash(to))
		if _, err := os.Stat(src); err != nil {
			continue // missing source is skipped, same as the real run
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("failed to apply virtual rename %s: %w", from, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to apply virtual rename %s: %w", from, err)
		}
	}
	for rel, content := range ov.Writes {
		dst := filepath.Join(scratchDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("failed to apply virtual write %s: %w", rel, err)
		}
		// A linked file shares its inode with the real one; replace, never
		// write through.
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to apply virtual write %s: %w", rel, err)
		}
		if err := os.WriteFile(dst, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to apply virtual write %s: %w", rel, err)
		}
	}
	return nil
}

func loadIgnoreMatcher(projectRoot string) *ignore.GitIgnore {
	matcher, err := ignore.CompileIgnoreFile(filepath.Join(projectRoot, ".gitignore"))
	if err != nil {
		return nil
	}
	return matcher
}

func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// cacheKey derives a stable per-project key for the incremental build cache.
func cacheKey(projectRoot string) string {
	clean := filepath.ToSlash(filepath.Clean(projectRoot))
	var h uint64 = 1469598103934665603 // FNV-1a
	for i := 0; i < len(clean); i++ {
		h ^= uint64(clean[i])
		h *= 1099511628211
	}
	base := filepath.Base(clean)
	base = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	return fmt.Sprintf("%s-%016x", base, h)
}
