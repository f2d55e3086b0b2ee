package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Ensure(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, created_at, updated_at)
VALUES ($1, $2, $2)
ON CONFLICT (id) DO NOTHING
`, userID, now)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, display_name, industry, team_size, description, onboarded_at, created_at, updated_at
FROM users
WHERE id = $1
`, userID)

	var (
		user                                                domain.User
		email, displayName, industry, teamSize, description sql.NullString
		onboardedAt                                         sql.NullTime
	)
	err := row.Scan(&user.ID, &email, &displayName, &industry, &teamSize, &description, &onboardedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get user", "user", userID)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Email = email.String
	user.DisplayName = displayName.String
	user.Industry = industry.String
	user.TeamSize = teamSize.String
	user.Description = description.String
	if onboardedAt.Valid {
		t := onboardedAt.Time
		user.OnboardedAt = &t
	}
	return &user, nil
}

// SaveProfile keeps the first onboarding timestamp when a user onboards again.
func (r *UserRepository) SaveProfile(ctx context.Context, userID string, profile domain.OnboardingProfile) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET industry = $2, team_size = $3, description = $4, onboarded_at = COALESCE(onboarded_at, $5), updated_at = $5
WHERE id = $1
`, userID, profile.Industry, nullString(profile.TeamSize), nullString(profile.Description), now)
	if err != nil {
		return fmt.Errorf("save onboarding profile: %w", err)
	}
	return requireAffected(res, "save onboarding profile", "user", userID)
}
