package builtins

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// ringBufferLines bounds how much output a managed process keeps in memory
// (§5 "bounded per-process ring buffer, e.g. 1000 lines").
const ringBufferLines = 1000

// gracefulStopTimeout is how long Stop waits for SIGTERM to land
// before escalating to SIGKILL (§6 "cancellation: SIGTERM then SIGKILL
// after a grace period").
const gracefulStopTimeout = 10 * time.Second

// managedProcess is one background process tracked by ProcessManager.
type managedProcess struct {
	label   string
	command string
	pid     int
	status  string // running, stopped, failed
	exit    int

	cmd    *exec.Cmd
	ring   *ringBuffer
	done   chan struct{}
}

// ProcessManager runs and supervises background processes started by the
// background-process-manager builtin tool, grounded on the teacher's
// daemon_manager.go ring-buffer-and-signal design.
type ProcessManager struct {
	mu        sync.RWMutex
	processes map[string]*managedProcess
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{processes: make(map[string]*managedProcess)}
}

func (pm *ProcessManager) Start(label, command, workDir string) (*managedProcess, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if existing, ok := pm.processes[label]; ok && existing.status == "running" {
		return nil, fmt.Errorf("process %q already running (PID %d)", label, existing.pid)
	}

	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = workDir
	ring := newRingBuffer(ringBufferLines)
	cmd.Stdout = ring
	cmd.Stderr = ring

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process %q: %w", label, err)
	}

	p := &managedProcess{
		label:   label,
		command: command,
		pid:     cmd.Process.Pid,
		status:  "running",
		cmd:     cmd,
		ring:    ring,
		done:    make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		pm.mu.Lock()
		defer pm.mu.Unlock()
		p.status = "stopped"
		if err != nil {
			p.status = "failed"
		}
		if cmd.ProcessState != nil {
			p.exit = cmd.ProcessState.ExitCode()
		}
		close(p.done)
	}()

	pm.processes[label] = p
	return p, nil
}

// Stop sends SIGTERM, waits gracefulStopTimeout, then escalates to SIGKILL
// if the process hasn't exited (§6 cancellation semantics).
func (pm *ProcessManager) Stop(label string, force bool) error {
	pm.mu.RLock()
	p, ok := pm.processes[label]
	pm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("process %q not found", label)
	}
	if p.status != "running" {
		return fmt.Errorf("process %q is not running (status: %s)", label, p.status)
	}

	if force {
		_ = p.cmd.Process.Signal(syscall.SIGKILL)
	} else {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-p.done:
	case <-time.After(gracefulStopTimeout):
		_ = p.cmd.Process.Signal(syscall.SIGKILL)
		<-p.done
	}
	return nil
}

// Poll returns up to n of the most recent lines from label's ring buffer
// (all buffered lines when n <= 0); the buffer itself is left unchanged.
func (pm *ProcessManager) Poll(label string, n int) (string, error) {
	pm.mu.RLock()
	p, ok := pm.processes[label]
	pm.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("process %q not found", label)
	}
	lines := p.ring.Lines()
	if n > 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

func (pm *ProcessManager) List() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]string, 0, len(pm.processes))
	for _, p := range pm.processes {
		out = append(out, fmt.Sprintf("%s: %s (pid %d, status %s, exit %d)", p.label, p.command, p.pid, p.status, p.exit))
	}
	return out
}

// Shutdown stops every running process, used at process exit so a crashed
// or exiting agent host never leaves orphaned children behind.
func (pm *ProcessManager) Shutdown() {
	pm.mu.RLock()
	labels := make([]string, 0)
	for label, p := range pm.processes {
		if p.status == "running" {
			labels = append(labels, label)
		}
	}
	pm.mu.RUnlock()
	for _, label := range labels {
		_ = pm.Stop(label, false)
	}
}

type ringBuffer struct {
	mu      sync.Mutex
	lines   []string
	max     int
	partial strings.Builder
}

func newRingBuffer(max int) *ringBuffer {
	return &ringBuffer{lines: make([]string, 0, max), max: max}
}

func (rb *ringBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.partial.Write(p)
	text := rb.partial.String()
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			break
		}
		rb.lines = append(rb.lines, text[:idx])
		if len(rb.lines) > rb.max {
			rb.lines = rb.lines[1:]
		}
		text = text[idx+1:]
	}
	rb.partial.Reset()
	rb.partial.WriteString(text)
	return len(p), nil
}

func (rb *ringBuffer) Lines() []string {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]string, len(rb.lines))
	copy(out, rb.lines)
	return out
}

var _ io.Writer = (*ringBuffer)(nil)

// ManageProcessTool is a single dispatcher tool consolidating start/poll/
// list/stop actions over pm, mirroring the teacher's consolidated "daemon"
// tool shape.
func ManageProcessTool(pm *ProcessManager) tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"start", "poll", "list", "stop"},
				"description": "start (launch), poll (read buffered output), list (show all), stop (terminate)",
			},
			"label":   map[string]any{"type": "string", "description": "Unique process label"},
			"command": map[string]any{"type": "string", "description": "Shell command to run (for start)"},
			"lines":   map[string]any{"type": "integer", "description": "Number of log lines to return (for poll, default 100)"},
			"force":   map[string]any{"type": "boolean", "description": "SIGKILL immediately instead of SIGTERM-then-wait (for stop)"},
		},
		"required": []string{"action"},
	})
	return tools.Tool{
		Name:        "manage_process",
		Description: "Start, poll, list, and stop long-running background processes (dev servers, watchers, long builds).",
		Schema:      schema,
		Sensitive:   true,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			action, _ := args["action"].(string)
			label, _ := args["label"].(string)

			switch action {
			case "start":
				command, _ := args["command"].(string)
				if label == "" || command == "" {
					return tools.Err("label and command are required for start")
				}
				if err := tools.CheckDenyList(command); err != nil {
					return tools.Err(err.Error())
				}
				p, err := pm.Start(label, command, ctx.ProjectRoot)
				if err != nil {
					return tools.Err(err.Error())
				}
				return tools.OK(fmt.Sprintf("started %q (pid %d)", p.label, p.pid))
			case "poll":
				if label == "" {
					return tools.Err("label is required for poll")
				}
				n := intArg(args, "lines", 100)
				out, err := pm.Poll(label, n)
				if err != nil {
					return tools.Err(err.Error())
				}
				return tools.OK(out)
			case "list":
				return tools.OK(strings.Join(pm.List(), "\n"))
			case "stop":
				if label == "" {
					return tools.Err("label is required for stop")
				}
				force, _ := args["force"].(bool)
				if err := pm.Stop(label, force); err != nil {
					return tools.Err(err.Error())
				}
				return tools.OK(fmt.Sprintf("stopped %q", label))
			default:
				return tools.Errf("unknown action %q", action)
			}
		},
	}
}
