package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveUnderRoot resolves rel against root and rejects any path that
// would escape root via ".." traversal (§6 Tool ABI: "safe against path
// traversal: resolve paths under projectRoot and reject .. escapes").
func ResolveUnderRoot(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	joined := filepath.Join(absRoot, rel)
	cleanRoot := filepath.Clean(absRoot)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", rel)
	}
	return joined, nil
}
