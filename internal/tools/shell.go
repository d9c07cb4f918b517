package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/ansi"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

const (
	maxShellOutputChars = 30000
)

// whitelist is the set of command roots auto-confirmed for the
// lifetime of the process once run_shell_command has executed them
// successfully in non-readonly mode. Readonly mode refuses roots that
// were never whitelisted.
type whitelist struct {
	mu    sync.Mutex
	roots map[string]bool
}

func newWhitelist() *whitelist { return &whitelist{roots: make(map[string]bool)} }

func (w *whitelist) allow(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roots[root] = true
}

func (w *whitelist) allowed(root string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots[root]
}

func commandRoot(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Shell carries the part of tool state that must persist across calls:
// the auto-whitelist of command roots.
type Shell struct {
	whitelist *whitelist
}

// NewShell constructs a Shell with an empty whitelist.
func NewShell() *Shell { return &Shell{whitelist: newWhitelist()} }

// RunShellCommand implements run_shell_command: executes command via
// /bin/bash -c (or /bin/zsh -c on macOS, cmd.exe /c on Windows) in its
// own process group so ctx cancellation can kill the whole group
// instead of only the direct child. The shell runs non-interactively
// with no stdin.
func (s *Shell) RunShellCommand(ctx context.Context, toolCtx Context, command, directory string) string {
	root := commandRoot(command)
	if toolCtx.ReadOnly {
		if !s.whitelist.allowed(root) {
			return toolxml.Render(failure("run_shell_command", mogerr.New(
				mogerr.PermissionDenied,
				fmt.Sprintf("command %q is not whitelisted and readonly mode forbids new shell commands", root),
			)))
		}
	}

	workDir := toolCtx.WorkingDir
	if directory != "" {
		resolved, err := resolvePath(toolCtx, directory)
		if err != nil {
			return toolxml.Render(failure("run_shell_command", err))
		}
		workDir = resolved
	}

	shellPath, shellArg := shellInvocation()
	cmd := exec.CommandContext(ctx, shellPath, shellArg, command)
	cmd.Dir = workDir
	cmd.Stdin = nil
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Start()
	if runErr == nil {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
			<-done
			runErr = ctx.Err()
		case err := <-done:
			runErr = err
		}
	}

	exitCode := exitCodeOf(runErr)
	if !toolCtx.ReadOnly && exitCode == 0 {
		s.whitelist.allow(root)
	}

	output := formatShellOutput(ansi.Strip(stdout.String()), ansi.Strip(stderr.String()), exitCode, ctx.Err())
	if output == "" {
		output = "(no output)\n"
	}
	if len([]rune(output)) > maxShellOutputChars {
		output = truncateMiddle(output, maxShellOutputChars)
	}

	if exitCode != 0 {
		return toolxml.Render(toolxml.Response{
			ToolName: "run_shell_command",
			Result:   toolxml.Result{Status: toolxml.Failed},
			Error:    output,
		})
	}
	return toolxml.Render(toolxml.Response{
		ToolName:      "run_shell_command",
		Result:        toolxml.Result{Status: toolxml.Success, AbsolutePath: workDir},
		ContentOnDisk: output,
	})
}

func shellInvocation() (path string, arg string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd.exe", "/c"
	case "darwin":
		return "/bin/zsh", "-c"
	default:
		return "/bin/bash", "-c"
	}
}

func formatShellOutput(stdout, stderr string, exitCode int, ctxErr error) string {
	var b strings.Builder
	if stdout != "" {
		b.WriteString(stdout)
		if !strings.HasSuffix(stdout, "\n") {
			b.WriteByte('\n')
		}
	}
	if stderr != "" {
		b.WriteString(stderr)
		if !strings.HasSuffix(stderr, "\n") {
			b.WriteByte('\n')
		}
	}
	if ctxErr != nil {
		fmt.Fprintf(&b, "[cancelled]\n")
	}
	if exitCode != 0 {
		fmt.Fprintf(&b, "[exit code: %d]\n", exitCode)
	}
	return b.String()
}

func truncateMiddle(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	half := maxChars / 2
	return string(runes[:half]) + "\n\n... [truncated] ...\n\n" + string(runes[len(runes)-half:])
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return 1
}

func asExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}

func setProcessGroup(cmd *exec.Cmd) {
	if runtime.GOOS == "windows" {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
