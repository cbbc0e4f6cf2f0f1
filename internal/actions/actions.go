package actions

import "github.com/google/uuid"

// ActionType represents the type of action to execute
type ActionType string

const (
	ActionTypeAppleScript  ActionType = "applescript"
	ActionTypeShellCommand ActionType = "shell"
	ActionTypeSleep        ActionType = "sleep"
)

// Action represents an executable action bound to a pad on the surface
type Action struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type ActionType `json:"type"`
	Code string     `json:"code"`
}

// NewAction creates a new action with a generated ID
func NewAction(name string, actionType ActionType, code string) *Action {
	return &Action{
		ID:   uuid.New().String(),
		Name: name,
		Type: actionType,
		Code: code,
	}
}

// Store holds the configured actions, looked up by ID
type Store struct {
	Actions []Action
}

// NewStore creates a store over a configured action list
func NewStore(actions []Action) *Store {
	return &Store{Actions: actions}
}

// Get returns an action by ID, or nil if not found
func (s *Store) Get(id string) *Action {
	for i := range s.Actions {
		if s.Actions[i].ID == id {
			return &s.Actions[i]
		}
	}
	return nil
}
