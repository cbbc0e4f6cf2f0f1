package actions

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// appleScriptRunner feeds the code to osascript. macOS only.
type appleScriptRunner struct{}

func (appleScriptRunner) supported() bool {
	return runtime.GOOS == "darwin"
}

func (appleScriptRunner) run(ctx context.Context, code string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("osascript: %s", msg)
		}
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
