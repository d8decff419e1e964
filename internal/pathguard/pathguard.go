// Package pathguard confines every filesystem write of the pipeline to a
// fixed set of allowed root directories, and sanitizes untrusted display
// names into filesystem-legal ones.
//
// Validation is lexical. The guard captures the working directory once at
// construction; a later chdir cannot move the trust boundary.
package pathguard

import (
	"path/filepath"
	"strings"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

const (
	maxNameLength   = 200
	namePlaceholder = "extension"
)

// Guard holds the resolved allowed roots. Read-only after construction.
type Guard struct {
	roots   []string
	workDir string
}

// New resolves each allowed root against workDir and returns a Guard.
// Relative roots are joined onto workDir; the literal root "." resolves to
// workDir itself.
func New(allowedRoots []string, workDir string) *Guard {
	workDir = filepath.Clean(workDir)
	roots := make([]string, 0, len(allowedRoots))
	for _, r := range allowedRoots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(workDir, r)
		}
		roots = append(roots, filepath.Clean(r))
	}
	return &Guard{roots: roots, workDir: workDir}
}

// Roots returns a copy of the resolved allowed roots.
func (g *Guard) Roots() []string {
	out := make([]string, len(g.roots))
	copy(out, g.roots)
	return out
}

// Resolve normalizes candidate (joined onto base when given, otherwise onto
// the captured working directory unless already absolute) and accepts it
// only when it equals an allowed root or is a strict descendant of one.
//
// Call this immediately before every directory creation or write the
// pipeline performs, not just once up front: later path composition can
// produce a path an earlier check never saw.
func (g *Guard) Resolve(candidate string, base ...string) (string, error) {
	var joined string
	switch {
	case len(base) > 0 && base[0] != "":
		joined = filepath.Join(base[0], candidate)
	case filepath.IsAbs(candidate):
		joined = candidate
	default:
		joined = filepath.Join(g.workDir, candidate)
	}

	// filepath.Join cleans lexically: "." and ".." segments resolve and
	// ".." clamps at the filesystem root.
	normalized := filepath.Clean(joined)

	for _, root := range g.roots {
		if normalized == root || strings.HasPrefix(normalized, root+string(filepath.Separator)) {
			return normalized, nil
		}
	}
	return "", crxerr.Security(crxerr.CodePathOutsideAllowedRoots,
		"path %q resolves outside the allowed output roots", candidate)
}

// SanitizeName converts an untrusted display name into a safe single path
// component: no separators, no control or filesystem-illegal characters, no
// ".." runs, at most 200 characters, never empty. Idempotent.
func SanitizeName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters dropped
		case strings.ContainsRune(`/\:*?"<>|`, r):
			// separators and Windows-illegal characters dropped
		default:
			b.WriteRune(r)
		}
	}
	name := b.String()

	// Collapse runs of dots so the name can never form a traversal segment.
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}

	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}
	if name == "" || name == "." {
		return namePlaceholder
	}
	return name
}
