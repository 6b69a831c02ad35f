package builtins

import "github.com/devagent/agentcore/pkg/agentcore/tools"

// All returns every built-in tool definition, ready to hand to
// tools.NewRegistry. pm backs the process-management tool; callers that
// don't need background processes may pass a fresh NewProcessManager().
func All(pm *ProcessManager) []tools.Tool {
	return []tools.Tool{
		ReadFileTool(),
		WriteFileTool(),
		ListDirectoryTool(),
		SearchCodeTool(),
		RunCommandTool(),
		RunTestsTool(),
		ManageProcessTool(pm),
	}
}
