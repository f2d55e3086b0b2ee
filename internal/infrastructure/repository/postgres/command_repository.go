package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const commandColumns = `id, user_id, command, result, error, status, created_at, updated_at`

type CommandRepository struct {
	db *sql.DB
}

func NewCommandRepository(db *sql.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

func (r *CommandRepository) Create(ctx context.Context, cmd *domain.AICommand) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ai_commands (id, user_id, command, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, cmd.ID, cmd.UserID, cmd.Command, string(cmd.Status), cmd.CreatedAt, cmd.UpdatedAt)
	if err != nil {
		return classifyWriteError("insert command", err)
	}
	return nil
}

func (r *CommandRepository) GetOwned(ctx context.Context, userID, id string) (*domain.AICommand, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM ai_commands WHERE id = $1 AND user_id = $2`, id, userID)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get command", "command", id)
	}
	return cmd, err
}

func (r *CommandRepository) List(ctx context.Context, userID string, limit int) ([]domain.AICommand, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+commandColumns+`
FROM ai_commands
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AICommand, 0)
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return out, nil
}

// Complete and Fail only move a command out of processing, so the terminal write happens once.
func (r *CommandRepository) Complete(ctx context.Context, id string, result domain.CommandResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal command result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE ai_commands
SET result = $2, error = NULL, status = $3, updated_at = $4
WHERE id = $1 AND status = $5
`, id, resultJSON, string(domain.CommandCompleted), time.Now().UTC(), string(domain.CommandProcessing))
	if err != nil {
		return fmt.Errorf("complete command: %w", err)
	}
	return requireAffected(res, "complete command", "processing command", id)
}

func (r *CommandRepository) Fail(ctx context.Context, id string, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ai_commands
SET result = NULL, error = $2, status = $3, updated_at = $4
WHERE id = $1 AND status = $5
`, id, errMessage, string(domain.CommandFailed), time.Now().UTC(), string(domain.CommandProcessing))
	if err != nil {
		return fmt.Errorf("fail command: %w", err)
	}
	return requireAffected(res, "fail command", "processing command", id)
}

func scanCommand(row rowScanner) (*domain.AICommand, error) {
	var (
		cmd       domain.AICommand
		resultRaw []byte
		errText   sql.NullString
		status    string
	)
	if err := row.Scan(&cmd.ID, &cmd.UserID, &cmd.Command, &resultRaw, &errText, &status, &cmd.CreatedAt, &cmd.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan command: %w", err)
	}
	cmd.Status = domain.CommandStatus(status)
	cmd.Error = errText.String
	if len(resultRaw) > 0 {
		var result domain.CommandResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal command result: %w", err)
		}
		cmd.Result = &result
	}
	return &cmd, nil
}
