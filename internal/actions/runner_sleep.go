package actions

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// sleepRunner pauses for a number of seconds, given as a decimal string.
// Useful between two other actions on the same pad sequence.
type sleepRunner struct{}

func (sleepRunner) supported() bool {
	return true
}

func (sleepRunner) run(ctx context.Context, code string) (string, error) {
	seconds, err := strconv.ParseFloat(code, 64)
	if err != nil || seconds < 0 {
		return "", fmt.Errorf("invalid duration %q", code)
	}

	d := time.Duration(seconds * float64(time.Second))
	select {
	case <-time.After(d):
		return fmt.Sprintf("slept %s", d), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
