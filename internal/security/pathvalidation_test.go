package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	recordings := filepath.Join(tmpDir, "recordings")
	elsewhere := filepath.Join(tmpDir, "elsewhere")
	for _, dir := range []string{filepath.Join(recordings, "frames"), elsewhere} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	if err := os.Symlink(elsewhere, filepath.Join(recordings, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"frame in subdirectory", filepath.Join(recordings, "frames", "0001.png"), false},
		{"base itself", recordings, false},
		{"dot-dot escape", filepath.Join(recordings, "..", "elsewhere", "x.png"), true},
		{"sibling with shared prefix", recordings + "-evil/x.png", true},
		{"absolute outside", "/etc/passwd", true},
		{"symlinked directory", filepath.Join(recordings, "link", "x.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, recordings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPathEscapes) {
				t.Errorf("expected ErrPathEscapes, got %v", err)
			}
		})
	}

	if err := ValidatePathWithinDirectory("x", filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("expected error for a missing base directory")
	}
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveWithin(dir, "frames/0001.png")
	if err != nil {
		t.Fatalf("ResolveWithin: %v", err)
	}
	if want := filepath.Join(dir, "frames", "0001.png"); got != want {
		t.Errorf("ResolveWithin = %q, want %q", got, want)
	}

	if _, err := ResolveWithin(dir, "../../etc/passwd"); !errors.Is(err, ErrPathEscapes) {
		t.Errorf("expected ErrPathEscapes, got %v", err)
	}
	if _, err := ResolveWithin(dir, filepath.Join(dir, "abs.png")); err != nil {
		t.Errorf("absolute path inside base rejected: %v", err)
	}
}

func TestValidateExportPath(t *testing.T) {
	if err := ValidateExportPath(filepath.Join(os.TempDir(), "decisions.png")); err != nil {
		t.Errorf("temp dir export rejected: %v", err)
	}
	if err := ValidateExportPath("decisions.png"); err != nil {
		t.Errorf("working dir export rejected: %v", err)
	}
	if err := ValidateExportPath("/proc/decisions.png"); err == nil {
		t.Error("expected export outside cwd and temp to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                                     "unknown",
		"6f1c2d3e-aaaa-bbbb-cccc-0123456789ab": "6f1c2d3e-aaaa-bbbb-cccc-0123456789ab",
		"site sim/2026":                        "site_sim_2026",
		"../../etc":                            "etc",
		"a  b":                                 "a_b",
		"___":                                  "unknown",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
