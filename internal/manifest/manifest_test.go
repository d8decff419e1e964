package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    *Summary
		wantErr bool
	}{
		{
			name: "minimal manifest",
			raw: map[string]any{
				"name":             "Test",
				"version":          "1.0.0",
				"manifest_version": float64(3),
			},
			want: &Summary{Name: "Test", Version: "1.0.0", ManifestVersion: 3},
		},
		{
			name: "optional fields and unknown keys",
			raw: map[string]any{
				"name":             "  Padded  ",
				"version":          "2.1",
				"manifest_version": float64(2),
				"description":      "does things",
				"permissions":      []any{"tabs", "storage"},
				"background":       map[string]any{"service_worker": "bg.js"},
			},
			want: &Summary{
				Name:            "Padded",
				Version:         "2.1",
				ManifestVersion: 2,
				Description:     "does things",
				Permissions:     []string{"tabs", "storage"},
			},
		},
		{
			name:    "missing name",
			raw:     map[string]any{"version": "1.0", "manifest_version": float64(3)},
			wantErr: true,
		},
		{
			name: "blank name",
			raw: map[string]any{
				"name": "   ", "version": "1.0", "manifest_version": float64(3),
			},
			wantErr: true,
		},
		{
			name:    "missing version",
			raw:     map[string]any{"name": "x", "manifest_version": float64(3)},
			wantErr: true,
		},
		{
			name: "manifest_version not a number",
			raw: map[string]any{
				"name": "x", "version": "1.0", "manifest_version": "3",
			},
			wantErr: true,
		},
		{
			name: "description wrong type",
			raw: map[string]any{
				"name": "x", "version": "1.0", "manifest_version": float64(3),
				"description": 42,
			},
			wantErr: true,
		},
		{
			name: "permissions with non-string entry",
			raw: map[string]any{
				"name": "x", "version": "1.0", "manifest_version": float64(3),
				"permissions": []any{"tabs", 7},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() succeeded, want error")
				}
				if code := crxerr.CodeOf(err); code != crxerr.CodeInvalidManifest {
					t.Errorf("Validate() code = %s, want InvalidManifest", code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"name":"Test","version":"1.0.0","manifest_version":3,"icons":{"16":"i.png"}}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := ReadFile(dir)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if s.Name != "Test" || s.Version != "1.0.0" || s.ManifestVersion != 3 {
		t.Errorf("ReadFile() = %+v", s)
	}

	if _, err := ReadFile(t.TempDir()); crxerr.CodeOf(err) != crxerr.CodeInvalidManifest {
		t.Errorf("ReadFile(empty dir) code = %s, want InvalidManifest", crxerr.CodeOf(err))
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		prev, next, want string
	}{
		{"1.0.0", "1.1.0", "upgrade"},
		{"2.0.0", "1.9.9", "downgrade"},
		{"1.0.0", "1.0.0", "unchanged"},
		{"v1.0.0", "1.0.1", "upgrade"},
		{"not-semver", "1.0.0", "unknown"},
		{"", "1.0.0", "unknown"},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.prev, tt.next); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %q, want %q", tt.prev, tt.next, got, tt.want)
		}
	}
}
