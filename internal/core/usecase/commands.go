package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const (
	maxCommandLen       = 2000
	defaultCommandLimit = 20
	maxCommandLimit     = 100
)

// CommandUseCase records free-text commands and their language-model classification.
// Proposed actions are stored, never executed.
type CommandUseCase struct {
	repo        ports.CommandRepository
	interpreter ports.CommandInterpreter
	runner      ports.JobRunner
	timeout     time.Duration
}

func NewCommandUseCase(
	repo ports.CommandRepository,
	interpreter ports.CommandInterpreter,
	runner ports.JobRunner,
	timeout time.Duration,
) *CommandUseCase {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CommandUseCase{
		repo:        repo,
		interpreter: interpreter,
		runner:      runner,
		timeout:     timeout,
	}
}

func (uc *CommandUseCase) Submit(ctx context.Context, userID, command string) (*domain.AICommand, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit command", errors.New("command must not be empty"))
	}
	if len(command) > maxCommandLen {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit command", fmt.Errorf("command longer than %d bytes", maxCommandLen))
	}

	now := time.Now().UTC()
	cmd := &domain.AICommand{
		ID:        uuid.NewString(),
		UserID:    userID,
		Command:   command,
		Status:    domain.CommandProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, cmd); err != nil {
		return nil, fmt.Errorf("create command: %w", err)
	}

	id, text := cmd.ID, cmd.Command
	err := uc.runner.Submit("interpret_command", func(jobCtx context.Context) error {
		return uc.interpret(jobCtx, id, text)
	})
	if err != nil {
		reason := fmt.Sprintf("dispatch command: %v", err)
		if failErr := uc.repo.Fail(ctx, cmd.ID, reason); failErr != nil {
			return nil, fmt.Errorf("%w; mark command failed: %v", err, failErr)
		}
		cmd.Status = domain.CommandFailed
		cmd.Error = reason
	}
	return cmd, nil
}

func (uc *CommandUseCase) Get(ctx context.Context, userID, commandID string) (*domain.AICommand, error) {
	return uc.repo.GetOwned(ctx, userID, commandID)
}

func (uc *CommandUseCase) List(ctx context.Context, userID string, limit int) ([]domain.AICommand, error) {
	if limit <= 0 {
		limit = defaultCommandLimit
	}
	if limit > maxCommandLimit {
		limit = maxCommandLimit
	}
	return uc.repo.List(ctx, userID, limit)
}

// interpret performs the single terminal write for a command.
func (uc *CommandUseCase) interpret(ctx context.Context, commandID, command string) error {
	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var result domain.CommandResult
	err := callCtx.Err()
	if err == nil {
		result, err = uc.interpreter.InterpretCommand(callCtx, command)
	}
	if err == nil {
		err = result.Validate()
	}

	persistCtx, cancelPersist := detached(ctx)
	defer cancelPersist()

	if err != nil {
		slog.Warn("command_interpret_failed", "command_id", commandID, "error", err)
		if failErr := uc.repo.Fail(persistCtx, commandID, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark command failed: %v", err, failErr)
		}
		return nil
	}

	if result.Parameters == nil {
		result.Parameters = map[string]any{}
	}
	if err := uc.repo.Complete(persistCtx, commandID, result); err != nil {
		return fmt.Errorf("complete command: %w", err)
	}
	slog.Info("command_interpreted", "command_id", commandID, "action", string(result.Action))
	return nil
}
