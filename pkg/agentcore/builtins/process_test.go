package builtins

import (
	"strings"
	"testing"
	"time"
)

func TestProcessManager_StartPollStop(t *testing.T) {
	t.Parallel()
	pm := NewProcessManager()

	p, err := pm.Start("echoer", "echo hello; sleep 5", t.TempDir())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.pid == 0 {
		t.Fatal("expected a non-zero pid")
	}

	deadline := time.Now().Add(2 * time.Second)
	var out string
	for time.Now().Before(deadline) {
		out, _ = pm.Poll("echoer", 0)
		if strings.Contains(out, "hello") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected ring buffer to capture 'hello', got %q", out)
	}

	if err := pm.Stop("echoer", false); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestProcessManager_StartDuplicateLabelRejected(t *testing.T) {
	t.Parallel()
	pm := NewProcessManager()
	if _, err := pm.Start("dup", "sleep 5", t.TempDir()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { pm.Shutdown() })

	if _, err := pm.Start("dup", "sleep 5", t.TempDir()); err == nil {
		t.Fatal("expected starting a second process under the same label to fail")
	}
}

func TestProcessManager_PollUnknownLabel(t *testing.T) {
	t.Parallel()
	pm := NewProcessManager()
	if _, err := pm.Poll("nope", 10); err == nil {
		t.Fatal("expected polling an unknown label to error")
	}
}

func TestProcessManager_Shutdown_StopsRunningProcesses(t *testing.T) {
	t.Parallel()
	pm := NewProcessManager()
	if _, err := pm.Start("bg", "sleep 30", t.TempDir()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pm.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		list := pm.List()
		if len(list) == 1 && !strings.Contains(list[0], "status running") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected the background process to stop after Shutdown")
}

func TestRingBuffer_BoundsLineCount(t *testing.T) {
	t.Parallel()
	rb := newRingBuffer(3)
	rb.Write([]byte("a\nb\nc\nd\ne\n"))
	lines := rb.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected ring buffer capped at 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[len(lines)-1] != "e" {
		t.Errorf("expected the most recent line retained, got %v", lines)
	}
}
