package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/infrastructure/repository/postgres/migrations"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func OpenDB(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	if maxConns <= 0 {
		maxConns = 10
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded schema migrations. goose takes a session lock, so api and
// worker may both call it on startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classifyWriteError maps constraint violations onto domain error kinds.
func classifyWriteError(operation string, err error) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation, pgForeignKeyViolation:
		return domain.WrapError(domain.ErrConflict, operation, err)
	case pgCheckViolation:
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func notFound(operation, kind, id string) error {
	return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("%s %s", kind, id))
}

func requireAffected(res sql.Result, operation, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if n == 0 {
		return notFound(operation, kind, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableID(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}

func idFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}
