// Package tools implements the capability registry (C3): named tools with
// a JSON-schema input, an execution function, and a sensitivity flag. The
// registry is process-global and immutable after startup, as §3 requires.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExecContext carries per-invocation context into a tool: the project root
// paths are resolved against, a cancellation signal, and a logger. This
// replaces an ambient module-global with an explicit object threaded
// through every call, so tools stay safe under concurrent threads.
type ExecContext struct {
	Context     context.Context
	ProjectRoot string
	Logger      *slog.Logger
}

// Result is a tool's structured outcome; every Invoke returns one.
type Result struct {
	Content string
	Status  ResultStatus
}

type ResultStatus string

const (
	StatusOK    ResultStatus = "ok"
	StatusError ResultStatus = "error"
)

func OK(content string) Result    { return Result{Content: content, Status: StatusOK} }
func Err(content string) Result   { return Result{Content: content, Status: StatusError} }
func Errf(format string, a ...any) Result {
	return Result{Content: fmt.Sprintf(format, a...), Status: StatusError}
}

// Invoke is a tool's execution function. args has already been validated
// against the tool's schema by the time Invoke runs.
type Invoke func(ctx ExecContext, args map[string]any) Result

// Tool is a single named capability (§3 "Tool record", §6 "Tool ABI").
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage // JSON Schema for args
	Sensitive   bool
	Invoke      Invoke

	compiled *jsonschema.Schema
}

// Registry is the process-global set of tools available to the executor.
// Build it once at startup via NewRegistry; the tool set is fixed from
// then on, and only the sensitivity overrides can be set afterward, via
// OverrideSensitivity.
type Registry struct {
	tools map[string]*Tool

	// alwaysApprove and requireApproval let a deployment's
	// config.ToolGuardConfig override a tool's own Sensitive flag without
	// touching the tool definition itself. Set via OverrideSensitivity
	// after construction; nil maps mean "no overrides".
	alwaysApprove   map[string]struct{}
	requireApproval map[string]struct{}
}

// OverrideSensitivity layers config.ToolGuardConfig's always-approve and
// require-approval lists on top of each tool's own Sensitive flag.
// alwaysApprove wins over requireApproval when a name appears in both.
func (r *Registry) OverrideSensitivity(alwaysApprove, requireApproval []string) {
	if len(alwaysApprove) > 0 {
		r.alwaysApprove = make(map[string]struct{}, len(alwaysApprove))
		for _, name := range alwaysApprove {
			r.alwaysApprove[name] = struct{}{}
		}
	}
	if len(requireApproval) > 0 {
		r.requireApproval = make(map[string]struct{}, len(requireApproval))
		for _, name := range requireApproval {
			r.requireApproval[name] = struct{}{}
		}
	}
}

var schemaCache sync.Map // JSON schema text -> *jsonschema.Schema

// NewRegistry compiles every tool's schema up front so a malformed schema
// fails fast at startup rather than on the first matching tool call.
func NewRegistry(defs []Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(defs))}
	for i := range defs {
		t := defs[i]
		if t.Name == "" {
			return nil, fmt.Errorf("tool at index %d has empty name", i)
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}
		compiled, err := compileSchema(t.Name, t.Schema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: compile schema: %w", t.Name, err)
		}
		t.compiled = compiled
		r.tools[t.Name] = &t
	}
	return r, nil
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		schema = json.RawMessage(`{}`)
	}
	key := name + "|" + string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(schema))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// Lookup returns the tool registered under name, or false.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, used to enumerate tool schemas
// for the LLM invoke() call (§6).
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// IsSensitive reports whether name is registered and sensitive. An unknown
// tool is treated as sensitive (fail closed) so the router never waves an
// unrecognized call through without approval. config.ToolGuardConfig
// overrides, set via OverrideSensitivity, take precedence over both the
// tool's own Sensitive flag and the fail-closed default for unknown tools.
func (r *Registry) IsSensitive(name string) bool {
	if _, ok := r.alwaysApprove[name]; ok {
		return false
	}
	if _, ok := r.requireApproval[name]; ok {
		return true
	}
	t, ok := r.tools[name]
	if !ok {
		return true
	}
	return t.Sensitive
}

// Validate parses args against the tool's compiled JSON Schema and returns
// a descriptive error on mismatch, per §6's Tool ABI requirement.
func (t *Tool) Validate(args map[string]any) error {
	if t.compiled == nil {
		return nil
	}
	// jsonschema validates against decoded JSON values; round-trip through
	// JSON so numeric types and nested maps match what a real wire call
	// would have produced.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	if err := t.compiled.Validate(decoded); err != nil {
		return fmt.Errorf("args for tool %q invalid: %w", t.Name, err)
	}
	return nil
}
