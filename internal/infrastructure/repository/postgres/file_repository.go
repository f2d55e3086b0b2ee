package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const fileColumns = `id, user_id, folder_id, name, original_name, size, mime_type, storage_path,
	ocr_text, ai_summary, tags, metadata, processing_status, created_at, updated_at`

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	tagsJSON, metadataJSON, err := marshalFileJSON(file.Tags, file.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO files (`+fileColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		file.ID, file.UserID, nullableID(file.FolderID), file.Name, file.OriginalName, file.Size, file.MimeType,
		file.StoragePath, nullString(file.OCRText), nullString(file.AISummary), tagsJSON, metadataJSON,
		string(file.ProcessingStatus), file.CreatedAt, file.UpdatedAt,
	)
	if err != nil {
		return classifyWriteError("insert file", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	return scanFileRow(row, id)
}

func (r *FileRepository) GetOwned(ctx context.Context, userID, id string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND user_id = $2`, id, userID)
	return scanFileRow(row, id)
}

func (r *FileRepository) List(ctx context.Context, userID string, filter domain.FileFilter) ([]domain.File, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + fileColumns + ` FROM files WHERE user_id = $1`)
	args := []any{userID}

	switch {
	case filter.RootOnly:
		query.WriteString(" AND folder_id IS NULL")
	case filter.FolderID != "":
		args = append(args, filter.FolderID)
		fmt.Fprintf(&query, " AND folder_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&query, " AND processing_status = $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC, id")

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]domain.File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

func (r *FileRepository) Update(ctx context.Context, file *domain.File) error {
	tagsJSON, metadataJSON, err := marshalFileJSON(file.Tags, file.Metadata)
	if err != nil {
		return err
	}
	file.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET name = $3, folder_id = $4, tags = $5, ocr_text = $6, ai_summary = $7, metadata = $8,
	processing_status = $9, updated_at = $10
WHERE id = $1 AND user_id = $2
`,
		file.ID, file.UserID, file.Name, nullableID(file.FolderID), tagsJSON, nullString(file.OCRText),
		nullString(file.AISummary), metadataJSON, string(file.ProcessingStatus), file.UpdatedAt,
	)
	if err != nil {
		return classifyWriteError("update file", err)
	}
	return requireAffected(res, "update file", "file", file.ID)
}

// UpdateStatus also clears a previous processing error.
func (r *FileRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET processing_status = $2, metadata = metadata - '`+domain.MetadataProcessingError+`', updated_at = $3
WHERE id = $1
`, id, string(status), time.Now().UTC())
	if err != nil {
		return classifyWriteError("update file status", err)
	}
	return requireAffected(res, "update file status", "file", id)
}

func (r *FileRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET processing_status = $2,
	metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{`+domain.MetadataProcessingError+`}', to_jsonb($3::text)),
	updated_at = $4
WHERE id = $1
`, id, string(domain.StatusFailed), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark file failed: %w", err)
	}
	return requireAffected(res, "mark file failed", "file", id)
}

func (r *FileRepository) SaveProcessingResult(ctx context.Context, id string, result domain.ProcessingResult) error {
	tags := result.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET ocr_text = $2, ai_summary = $3, tags = $4, processing_status = $5, updated_at = $6
WHERE id = $1
`, id, nullString(result.OCRText), nullString(result.AISummary), tagsJSON, string(result.Status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}
	return requireAffected(res, "save processing result", "file", id)
}

func (r *FileRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireAffected(res, "delete file", "file", id)
}

func (r *FileRepository) CountInFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE folder_id = $1`, folderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files in folder: %w", err)
	}
	return n, nil
}

func marshalFileJSON(tags []string, metadata map[string]any) ([]byte, []byte, error) {
	if tags == nil {
		tags = []string{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return tagsJSON, metadataJSON, nil
}

func scanFileRow(row rowScanner, id string) (*domain.File, error) {
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get file", "file", id)
	}
	return file, err
}

func scanFile(row rowScanner) (*domain.File, error) {
	var (
		file        domain.File
		folderID    sql.NullString
		ocrText     sql.NullString
		aiSummary   sql.NullString
		tagsRaw     []byte
		metadataRaw []byte
		status      string
	)
	err := row.Scan(
		&file.ID, &file.UserID, &folderID, &file.Name, &file.OriginalName, &file.Size, &file.MimeType,
		&file.StoragePath, &ocrText, &aiSummary, &tagsRaw, &metadataRaw, &status, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}

	file.FolderID = idFromNull(folderID)
	file.OCRText = ocrText.String
	file.AISummary = aiSummary.String
	file.ProcessingStatus = domain.ProcessingStatus(status)
	file.Tags = []string{}
	file.Metadata = map[string]any{}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &file.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &file.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if file.Tags == nil {
		file.Tags = []string{}
	}
	if file.Metadata == nil {
		file.Metadata = map[string]any{}
	}
	return &file, nil
}
