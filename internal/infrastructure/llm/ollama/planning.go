package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const maxPlanFolders = 30

type CommandInterpreter struct {
	client *Client
}

func NewCommandInterpreter(client *Client) *CommandInterpreter {
	return &CommandInterpreter{client: client}
}

type commandResponse struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (r *commandResponse) validate() error {
	return r.result().Validate()
}

func (r *commandResponse) result() domain.CommandResult {
	params := r.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return domain.CommandResult{
		Action:      domain.CommandAction(strings.TrimSpace(r.Action)),
		Description: strings.TrimSpace(r.Description),
		Parameters:  params,
	}
}

func (i *CommandInterpreter) InterpretCommand(ctx context.Context, command string) (domain.CommandResult, error) {
	var resp commandResponse
	if err := i.client.generateJSON(ctx, "interpret_command", buildCommandPrompt(command), &resp); err != nil {
		return domain.CommandResult{}, err
	}
	return resp.result(), nil
}

type FolderPlanner struct {
	client *Client
}

func NewFolderPlanner(client *Client) *FolderPlanner {
	return &FolderPlanner{client: client}
}

type folderPlanResponse struct {
	Folders []domain.FolderPlanEntry `json:"folders"`
}

// validate checks the shape only; tree rules are enforced by the onboarding use case.
func (r *folderPlanResponse) validate() error {
	if len(r.Folders) == 0 {
		return errors.New("no folders proposed")
	}
	if len(r.Folders) > maxPlanFolders {
		r.Folders = r.Folders[:maxPlanFolders]
	}
	for i := range r.Folders {
		entry := &r.Folders[i]
		entry.Key = strings.TrimSpace(entry.Key)
		entry.Name = strings.TrimSpace(entry.Name)
		entry.ParentKey = strings.TrimSpace(entry.ParentKey)
		if entry.Key == "" || entry.Name == "" {
			return fmt.Errorf("folder %d: key and name are required", i)
		}
	}
	return nil
}

func (p *FolderPlanner) PlanFolders(ctx context.Context, profile domain.OnboardingProfile) ([]domain.FolderPlanEntry, error) {
	var resp folderPlanResponse
	if err := p.client.generateJSON(ctx, "plan_folders", buildFolderPlanPrompt(profile), &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}
