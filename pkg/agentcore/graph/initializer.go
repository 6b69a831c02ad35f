package graph

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// MaxFileInjectSize caps how much of a single referenced file is loaded
// into context (§4.5: "size-capped, e.g. 10 MiB").
const MaxFileInjectSize = 10 * 1024 * 1024

// MaxTreeEntries caps how many tree entries get rendered (§4.5).
const MaxTreeEntries = 3000

var excludedTreeDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"vendor":       {},
	".cache":       {},
}

// Initializer is the Initializer Node (C6, §4.5).
type Initializer struct {
	Logger *slog.Logger
}

func (n *Initializer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Run is idempotent: it only (re-)does the work a prior tick left undone.
func (n *Initializer) Run(s state.AgentState) NodeResult {
	delta := state.StateDelta{}
	var messages []state.Delta

	if len(s.PendingFilePaths) > 0 {
		block := n.loadFileContext(s.ProjectRoot, s.PendingFilePaths)
		messages = append(messages, state.NewSystemMessage(block))
		delta.PendingFilePaths = state.StrSlicePtr(nil)
	}

	if !s.ProjectTreeInjected {
		tree := n.renderTree(s.ProjectRoot)
		delta.ProjectTreeText = state.StrPtr(tree)
		delta.ProjectTreeInjected = state.BoolPtr(true)
	}

	if len(messages) > 0 {
		delta.MessageDeltas = messages
	}
	return NodeResult{Delta: delta}.WithNext(NodeExecutor)
}

func (n *Initializer) loadFileContext(root string, paths []string) string {
	var b strings.Builder
	b.WriteString("# Referenced files\n")
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, p)
		}
		info, err := os.Stat(full)
		if err != nil {
			fmt.Fprintf(&b, "\n## %s\n(unreadable: %v)\n", p, err)
			continue
		}
		if info.Size() > MaxFileInjectSize {
			fmt.Fprintf(&b, "\n## %s\n(skipped: %d bytes exceeds the %d byte cap)\n", p, info.Size(), MaxFileInjectSize)
			continue
		}
		content, err := os.ReadFile(full)
		if err != nil {
			fmt.Fprintf(&b, "\n## %s\n(unreadable: %v)\n", p, err)
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n```\n%s\n```\n", p, content)
	}
	return b.String()
}

func (n *Initializer) renderTree(root string) string {
	var b strings.Builder
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // a single unreadable entry shouldn't abort the whole walk
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, excluded := excludedTreeDirs[name]; excluded {
				return filepath.SkipDir
			}
		}
		if count >= MaxTreeEntries {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		depth := strings.Count(rel, string(filepath.Separator))
		prefix := strings.Repeat("  ", depth)
		suffix := ""
		if d.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(&b, "%s%s%s\n", prefix, filepath.Base(rel), suffix)
		count++
		return nil
	})
	if err != nil {
		n.logger().Warn("project tree walk failed", "error", err)
	}
	return b.String()
}
