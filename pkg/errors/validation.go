package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateDependencyName validates a declared dependency name. Names
// end up in store paths, archive member names, and recipe variables,
// so anything that could traverse or escape a path is rejected.
func ValidateDependencyName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidManifest, "dependency name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidManifest, "dependency name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidManifest, "dependency name contains control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidManifest, "dependency name contains invalid sequence %q", pattern)
		}
	}
	return nil
}

// ValidateLocalPath validates a local dependency path. Paths must stay
// relative to the manifest directory.
func ValidateLocalPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "local path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return New(ErrCodeInvalidPath, "local path contains a null byte")
	}
	if filepath.IsAbs(path) {
		return New(ErrCodeInvalidPath, "local path %q must be relative", path)
	}

	// Reject escapes from the manifest directory.
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return New(ErrCodeInvalidPath, "local path %q escapes the project directory", path)
	}
	return nil
}
