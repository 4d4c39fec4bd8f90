package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout bounds one tool-level command execution.
	// Exceeding it is a tool failure, not a crash.
	DefaultCommandTimeout = 30 * time.Second

	// MaxCommandTimeout caps the timeout a caller may request.
	MaxCommandTimeout = 5 * time.Minute

	// maxOutputBytes truncates captured stdout/stderr.
	maxOutputBytes = 1000
)

var errorLinePattern = regexp.MustCompile(`(?im)^.*\b(error|exception|traceback|panic)[:\s].*$`)

// runCommandTool executes a shell command in the project directory.
type runCommandTool struct {
	projectDir string
}

func (t *runCommandTool) Name() string { return "run_command" }

func (t *runCommandTool) Description() string {
	return "Run a shell command in the project directory. Returns structured output with error analysis."
}

func (t *runCommandTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *runCommandTool) Execute(ctx context.Context, args map[string]any) Result {
	command, okArg := stringArg(args, "command")
	if !okArg {
		return failure("run_command requires a 'command' argument")
	}

	timeout := time.Duration(intArg(args, "timeout", 0)) * time.Second
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if timeout > MaxCommandTimeout {
		timeout = MaxCommandTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = t.projectDir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return failure(fmt.Sprintf("Command timed out after %s: %s", timeout, command),
			"Try with a longer timeout", "Check if the command is hanging")
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return failure(fmt.Sprintf("Failed to run command: %v", runErr), "Check command syntax")
		}
	}

	out := truncate(stdout.String())
	errOut := truncate(stderr.String())
	errorLines := extractErrorLines(out + "\n" + errOut)

	data := map[string]any{
		"command":   command,
		"exit_code": exitCode,
		"stdout":    out,
		"stderr":    errOut,
		"errors":    errorLines,
	}

	if exitCode != 0 {
		summary := fmt.Sprintf("Command failed (exit %d): %s", exitCode, command)
		if len(errorLines) > 0 {
			summary += ": " + errorLines[0]
		}
		return Result{
			Success:         false,
			Summary:         summary,
			Data:            data,
			NextSuggestions: []string{"Read the error output", "Fix the reported problem and retry"},
		}
	}

	return ok(fmt.Sprintf("Command succeeded: %s", command), data)
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "...(truncated)"
}

// extractErrorLines pulls up to five error-looking lines from output.
func extractErrorLines(output string) []string {
	matches := errorLinePattern.FindAllString(output, 5)
	for i, m := range matches {
		matches[i] = strings.TrimSpace(m)
	}
	return matches
}
