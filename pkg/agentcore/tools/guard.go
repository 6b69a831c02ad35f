package tools

import "strings"

// DefaultSensitiveNames is the default sensitive tool set (§6): file
// writers, appenders, the code-snippet editor, backup-restore, and
// process start/stop. The registry does not consult it: each builtin sets
// its own Tool.Sensitive flag, and config overrides go through
// Registry.OverrideSensitivity.
var DefaultSensitiveNames = map[string]struct{}{
	"write_file":      {},
	"append_file":     {},
	"edit_file":       {},
	"restore_backup":  {},
	"run_command":     {},
	"manage_process":  {},
}

// IsDefaultSensitive reports whether name falls in the default sensitive
// set, for tools that don't otherwise classify themselves.
func IsDefaultSensitive(name string) bool {
	_, ok := DefaultSensitiveNames[name]
	return ok
}

// denyListSubstrings is the process-spawn deny-list (§6): any command
// string containing one of these is rejected synchronously, before spawn.
var denyListSubstrings = []string{
	"rm -rf",
	"rm -fr",
	"del /f",
	"format ",
	"format c:",
	"dd if=",
	"mkfs",
	":(){ :|:& };:", // classic shell fork bomb
	"shutdown",
}

// CheckDenyList rejects a command line matching the process-spawn deny-list
// before any spawn is attempted. It returns a descriptive error on match,
// nil otherwise.
func CheckDenyList(commandLine string) error {
	lower := strings.ToLower(commandLine)
	for _, bad := range denyListSubstrings {
		if strings.Contains(lower, bad) {
			return &DeniedCommandError{Command: commandLine, Matched: bad}
		}
	}
	return nil
}

// DeniedCommandError reports which deny-list entry a command matched.
type DeniedCommandError struct {
	Command string
	Matched string
}

func (e *DeniedCommandError) Error() string {
	return "command rejected by deny-list (matched " + e.Matched + "): " + e.Command
}
