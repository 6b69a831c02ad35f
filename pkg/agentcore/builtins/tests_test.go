package builtins

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectTestFramework(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		file string
		want string
	}{
		{"go module", "go.mod", "go"},
		{"cargo crate", "Cargo.toml", "cargo"},
		{"pytest config", "pytest.ini", "pytest"},
		{"jest config", "jest.config.js", "jest"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, c.file), []byte(""), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if got := detectTestFramework(dir); got != c.want {
				t.Errorf("detectTestFramework(%s) = %q, want %q", c.file, got, c.want)
			}
		})
	}
}

func TestDetectTestFramework_PackageJSONContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"devDependencies":{"vitest":"^1.0.0"}}`), 0o644)
	if got := detectTestFramework(dir); got != "jest" {
		t.Errorf("expected vitest in package.json to classify as jest-family, got %q", got)
	}
}

func TestDetectTestFramework_Unknown(t *testing.T) {
	t.Parallel()
	if got := detectTestFramework(t.TempDir()); got != "" {
		t.Errorf("expected no framework detected in an empty directory, got %q", got)
	}
}

func TestBuildTestCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		framework, path, want string
	}{
		{"go", "", "go test ./..."},
		{"go", "./pkg/...", "go test ./pkg/..."},
		{"jest", "", "npx jest"},
		{"pytest", "tests/", "python -m pytest tests/"},
		{"cargo", "", "cargo test"},
		{"unknown", "", ""},
	}
	for _, c := range cases {
		if got := buildTestCommand(c.framework, c.path); got != c.want {
			t.Errorf("buildTestCommand(%q, %q) = %q, want %q", c.framework, c.path, got, c.want)
		}
	}
}
