package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// shellRunner runs a command line through the platform shell: PowerShell on
// Windows, /bin/sh elsewhere.
type shellRunner struct{}

func (shellRunner) supported() bool {
	return true
}

func (shellRunner) run(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("empty command")
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", code)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", code)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("shell: %s", msg)
		}
		return "", fmt.Errorf("shell: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
