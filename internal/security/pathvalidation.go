// Package security guards file access driven by recorded or user input.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned when a path resolves outside its base
// directory.
var ErrPathEscapes = errors.New("path escapes base directory")

// canonical resolves p to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the deepest existing ancestor is resolved
// and the remainder appended, so a symlinked parent cannot smuggle the
// path elsewhere.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory returns an error wrapping ErrPathEscapes
// when filePath, after cleaning and symlink resolution, lies outside
// baseDir. baseDir must exist.
func ValidatePathWithinDirectory(filePath, baseDir string) error {
	path, err := canonical(filePath)
	if err != nil {
		return err
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	base, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscapes, filePath, baseDir)
	}
	return nil
}

// ResolveWithin joins name onto baseDir (absolute names are taken as is)
// and checks the result stays inside baseDir.
func ResolveWithin(baseDir, name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, name)
	}
	if err := ValidatePathWithinDirectory(path, baseDir); err != nil {
		return "", err
	}
	return path, nil
}

// ValidateExportPath checks an output file lands in the working directory
// or the temp directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{cwd, os.TempDir()} {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: export %s must be under %s or %s", ErrPathEscapes, filePath, cwd, os.TempDir())
}

// SanitizeFilename makes a safe filename from an arbitrary string such as
// a session ID. Characters other than ASCII letters, digits, dot,
// underscore and dash become a single underscore; the result is capped at
// 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
