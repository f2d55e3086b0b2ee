package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const folderColumns = `id, user_id, name, parent_id, path, created_at, updated_at`

type FolderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO folders (`+folderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, folder.ID, folder.UserID, folder.Name, nullableID(folder.ParentID), folder.Path, folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		return classifyWriteError("insert folder", err)
	}
	return nil
}

func (r *FolderRepository) GetOwned(ctx context.Context, userID, id string) (*domain.Folder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1 AND user_id = $2`, id, userID)
	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get folder", "folder", id)
	}
	return folder, err
}

func (r *FolderRepository) List(ctx context.Context, userID string) ([]domain.Folder, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+folderColumns+`
FROM folders
WHERE user_id = $1
ORDER BY path, created_at
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return out, nil
}

func (r *FolderRepository) Update(ctx context.Context, folder *domain.Folder) error {
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE folders
SET name = $3, parent_id = $4, path = $5, updated_at = $6
WHERE id = $1 AND user_id = $2
`, folder.ID, folder.UserID, folder.Name, nullableID(folder.ParentID), folder.Path, folder.UpdatedAt)
	if err != nil {
		return classifyWriteError("update folder", err)
	}
	return requireAffected(res, "update folder", "folder", folder.ID)
}

// Delete relies on ON DELETE RESTRICT as a last guard: a folder that gained a file or child
// after the emptiness check surfaces as ErrConflict.
func (r *FolderRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return classifyWriteError("delete folder", err)
	}
	return requireAffected(res, "delete folder", "folder", id)
}

func (r *FolderRepository) CountChildren(ctx context.Context, folderID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders WHERE parent_id = $1`, folderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subfolders: %w", err)
	}
	return n, nil
}

func scanFolder(row rowScanner) (*domain.Folder, error) {
	var (
		folder   domain.Folder
		parentID sql.NullString
	)
	if err := row.Scan(&folder.ID, &folder.UserID, &folder.Name, &parentID, &folder.Path, &folder.CreatedAt, &folder.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	folder.ParentID = idFromNull(parentID)
	return &folder, nil
}
