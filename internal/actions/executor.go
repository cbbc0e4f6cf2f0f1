package actions

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runTimeout bounds one action run. Actions fire from pad presses; a wedged
// command would otherwise keep its pad stuck in the running state forever.
const runTimeout = 30 * time.Second

// runner executes the code of one action type.
type runner interface {
	// supported reports whether the type can run on the current platform.
	supported() bool
	run(ctx context.Context, code string) (string, error)
}

// Executor runs actions by type.
type Executor struct {
	runners map[ActionType]runner
}

func NewExecutor() *Executor {
	return &Executor{
		runners: map[ActionType]runner{
			ActionTypeShellCommand: shellRunner{},
			ActionTypeSleep:        sleepRunner{},
			ActionTypeAppleScript:  appleScriptRunner{},
		},
	}
}

// Execute runs an action and returns its output. The run is cut off after
// runTimeout.
func (e *Executor) Execute(action *Action) (string, error) {
	if action == nil {
		return "", errors.New("no action")
	}
	r, ok := e.runners[action.Type]
	if !ok {
		return "", fmt.Errorf("unknown action type: %s", action.Type)
	}
	if !r.supported() {
		return "", fmt.Errorf("action type %s is not supported on this platform", action.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return r.run(ctx, action.Code)
}
