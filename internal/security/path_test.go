package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathValidator(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		wantError bool
	}{
		{name: "temp directory", dir: t.TempDir()},
		{name: "empty directory", dir: "", wantError: true},
		{name: "blank directory", dir: "   ", wantError: true},
		{name: "missing directory is allowed", dir: "/non/existent/rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewPathValidator(tt.dir)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !filepath.IsAbs(v.Root()) {
				t.Errorf("Root() = %q, want absolute path", v.Root())
			}
		})
	}
}

func TestPathValidator_Join(t *testing.T) {
	root := t.TempDir()
	v, err := NewPathValidator(root)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain file", input: "acme.json", want: filepath.Join(root, "acme.json")},
		{name: "unicode file", input: "台積電.json", want: filepath.Join(root, "台積電.json")},
		{name: "nested file", input: "sub/acme.json", want: filepath.Join(root, "sub", "acme.json")},
		{name: "parent escape", input: "../acme.json", wantErr: true},
		{name: "deep escape", input: "a/../../acme.json", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Join(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Join(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Join(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Join(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathValidator_Resolve(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	v, err := NewPathValidator(root)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	if _, err := v.Resolve(filepath.Join(outside, "order.pdf")); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Resolve(outside) error = %v, want ErrOutsideRoot", err)
	}

	got, err := v.Resolve("order.pdf")
	if err != nil {
		t.Fatalf("Resolve(relative) unexpected error: %v", err)
	}
	if got != filepath.Join(root, "order.pdf") {
		t.Errorf("Resolve(relative) = %q", got)
	}

	target := filepath.Join(outside, "secret.pdf")
	if err := os.WriteFile(target, []byte("%PDF-"), 0o600); err != nil {
		t.Fatalf("write target: %v", err)
	}
	link := filepath.Join(root, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if _, err := v.Resolve(link); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Resolve(symlink escape) error = %v, want ErrOutsideRoot", err)
	}
}

func TestPathValidator_ResolveSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	v, err := NewPathValidator(root)
	if err != nil {
		t.Fatalf("NewPathValidator() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(outside, "x.pdf"), []byte("%PDF-"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	for _, p := range []string{"link/x.pdf", "link/missing.pdf", filepath.Join(root, "link", "x.pdf")} {
		if _, err := v.Resolve(p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Resolve(%q) error = %v, want ErrOutsideRoot", p, err)
		}
	}

	dangling := filepath.Join(root, "dangling.json")
	if err := os.Symlink(filepath.Join(outside, "new.json"), dangling); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := v.Resolve(dangling); err == nil {
		t.Error("Resolve(dangling symlink) expected error")
	}

	inner := filepath.Join(root, "orders")
	if err := os.Mkdir(inner, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(inner, filepath.Join(root, "alias")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := v.Resolve("alias/po.pdf"); err != nil {
		t.Errorf("Resolve(link inside root) error = %v", err)
	}
}
