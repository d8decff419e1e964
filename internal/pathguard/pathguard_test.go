package pathguard

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

func TestResolve(t *testing.T) {
	workDir := filepath.FromSlash("/work")

	tests := []struct {
		name      string
		roots     []string
		candidate string
		base      string
		want      string
		wantErr   bool
	}{
		{
			name:      "relative path under dot root",
			roots:     []string{"."},
			candidate: "extensions/foo",
			want:      filepath.FromSlash("/work/extensions/foo"),
		},
		{
			name:      "root itself is accepted",
			roots:     []string{"."},
			candidate: ".",
			want:      filepath.FromSlash("/work"),
		},
		{
			name:      "traversal out of dot root",
			roots:     []string{"."},
			candidate: "../../etc/passwd",
			wantErr:   true,
		},
		{
			name:      "absolute path outside roots",
			roots:     []string{"."},
			candidate: filepath.FromSlash("/etc/passwd"),
			wantErr:   true,
		},
		{
			name:      "absolute path inside absolute root",
			roots:     []string{filepath.FromSlash("/data")},
			candidate: filepath.FromSlash("/data/ext"),
			want:      filepath.FromSlash("/data/ext"),
		},
		{
			name:      "sibling with shared prefix rejected",
			roots:     []string{filepath.FromSlash("/data")},
			candidate: filepath.FromSlash("/database/ext"),
			wantErr:   true,
		},
		{
			name:      "dotdot inside stays contained",
			roots:     []string{"."},
			candidate: "a/b/../c",
			want:      filepath.FromSlash("/work/a/c"),
		},
		{
			name:      "base join escaping root",
			roots:     []string{filepath.FromSlash("/data")},
			candidate: "../../outside",
			base:      filepath.FromSlash("/data/sub"),
			wantErr:   true,
		},
		{
			name:      "base join staying inside",
			roots:     []string{filepath.FromSlash("/data")},
			candidate: "name",
			base:      filepath.FromSlash("/data/sub"),
			want:      filepath.FromSlash("/data/sub/name"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.roots, workDir)
			var (
				got string
				err error
			)
			if tt.base != "" {
				got, err = g.Resolve(tt.candidate, tt.base)
			} else {
				got, err = g.Resolve(tt.candidate)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %q, want rejection", tt.candidate, got)
				}
				if code := crxerr.CodeOf(err); code != crxerr.CodePathOutsideAllowedRoots {
					t.Errorf("Resolve(%q) code = %s, want PathOutsideAllowedRoots", tt.candidate, code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.candidate, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "My Extension", "My Extension"},
		{"separators stripped", `a/b\c`, "abc"},
		{"traversal collapsed", "..secret..", ".secret."},
		{"deep traversal collapses to placeholder", "....", "extension"},
		{"control characters stripped", "a\x00b\x1fc\x7fd", "abcd"},
		{"illegal punctuation stripped", `n:a*m?e"<>|`, "name"},
		{"whitespace trimmed", "  padded  ", "padded"},
		{"empty becomes placeholder", "", "extension"},
		{"only junk becomes placeholder", "///\x00\x01  ", "extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.raw); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeNameProperties(t *testing.T) {
	inputs := []string{
		"", "normal", "../../etc/passwd", strings.Repeat("x", 500),
		strings.Repeat("虚拟", 300), "a\tb\nc", "...", "trailing. ",
	}
	for _, raw := range inputs {
		got := SanitizeName(raw)
		if got == "" {
			t.Errorf("SanitizeName(%q) returned empty", raw)
		}
		if n := len([]rune(got)); n > 200 {
			t.Errorf("SanitizeName(%q) is %d runes, limit 200", raw, n)
		}
		if strings.ContainsAny(got, "/\\") {
			t.Errorf("SanitizeName(%q) = %q contains a separator", raw, got)
		}
		for _, r := range got {
			if r < 0x20 || r == 0x7f {
				t.Errorf("SanitizeName(%q) = %q contains a control character", raw, got)
			}
		}
		if again := SanitizeName(got); again != got {
			t.Errorf("SanitizeName not idempotent: %q -> %q -> %q", raw, got, again)
		}
	}
}
