package domain

import (
	"fmt"
	"strings"
	"time"
)

type CommandStatus string

const (
	CommandPending    CommandStatus = "pending"
	CommandProcessing CommandStatus = "processing"
	CommandCompleted  CommandStatus = "completed"
	CommandFailed     CommandStatus = "failed"
)

type CommandAction string

const (
	ActionMoveFiles    CommandAction = "move_files"
	ActionOrganize     CommandAction = "organize"
	ActionSearch       CommandAction = "search"
	ActionCreateFolder CommandAction = "create_folder"
	ActionRename       CommandAction = "rename"
)

func (a CommandAction) Valid() bool {
	switch a {
	case ActionMoveFiles, ActionOrganize, ActionSearch, ActionCreateFolder, ActionRename:
		return true
	default:
		return false
	}
}

// CommandResult is the language model's classification of a free-text command. It is advisory only.
type CommandResult struct {
	Action      CommandAction  `json:"action"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (r CommandResult) Validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("empty description for action %q", r.Action)
	}
	return nil
}

type AICommand struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Command   string         `json:"command"`
	Result    *CommandResult `json:"result"`
	Error     string         `json:"error,omitempty"`
	Status    CommandStatus  `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
