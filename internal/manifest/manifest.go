// Package manifest reads and structurally validates the manifest.json an
// extraction produces. Only the fields needed to report extension identity
// are checked; everything else passes through untouched.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

// FileName is the manifest's fixed name at the output root.
const FileName = "manifest.json"

// Summary holds the validated identity fields of a manifest.
type Summary struct {
	Name            string
	Version         string
	ManifestVersion int
	Description     string
	Permissions     []string
}

// Validate checks the structural minimum: name, version, manifest_version
// required; description and permissions type-checked when present. Unknown
// fields are ignored.
func Validate(raw map[string]any) (*Summary, error) {
	name, ok := raw["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, invalid("name", "must be a non-empty string")
	}

	version, ok := raw["version"].(string)
	if !ok || version == "" {
		return nil, invalid("version", "must be a non-empty string")
	}

	mv, ok := raw["manifest_version"].(float64)
	if !ok {
		return nil, invalid("manifest_version", "must be a number")
	}

	s := &Summary{
		Name:            strings.TrimSpace(name),
		Version:         version,
		ManifestVersion: int(mv),
	}

	if d, present := raw["description"]; present {
		ds, ok := d.(string)
		if !ok {
			return nil, invalid("description", "must be a string when present")
		}
		s.Description = ds
	}

	if p, present := raw["permissions"]; present {
		list, ok := p.([]any)
		if !ok {
			return nil, invalid("permissions", "must be an array when present")
		}
		perms := make([]string, 0, len(list))
		for _, item := range list {
			ps, ok := item.(string)
			if !ok {
				return nil, invalid("permissions", "must contain only strings")
			}
			perms = append(perms, ps)
		}
		s.Permissions = perms
	}

	return s, nil
}

// ReadFile loads and validates the manifest at the root of dir.
func ReadFile(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, crxerr.Wrap(crxerr.KindValidation, crxerr.CodeInvalidManifest, err,
			"cannot read %s", FileName)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, crxerr.Wrap(crxerr.KindValidation, crxerr.CodeInvalidManifest, err,
			"cannot parse %s", FileName)
	}
	return Validate(raw)
}

// CompareVersions reports how next relates to prev: "upgrade", "downgrade",
// "unchanged", or "unknown" when either version is not semver-comparable.
func CompareVersions(prev, next string) string {
	p, n := normalizeTag(prev), normalizeTag(next)
	if !semver.IsValid(p) || !semver.IsValid(n) {
		return "unknown"
	}
	switch semver.Compare(n, p) {
	case 1:
		return "upgrade"
	case -1:
		return "downgrade"
	}
	return "unchanged"
}

func normalizeTag(tag string) string {
	if tag == "" || strings.HasPrefix(tag, "v") {
		return tag
	}
	return "v" + tag
}

func invalid(field, reason string) error {
	return crxerr.Validation(crxerr.CodeInvalidManifest,
		"manifest field %q %s", field, reason)
}
