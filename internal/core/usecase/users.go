package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const maxUserIDLen = 128

type UserUseCase struct {
	repo ports.UserRepository
}

func NewUserUseCase(repo ports.UserRepository) *UserUseCase {
	return &UserUseCase{repo: repo}
}

// Ensure registers the requester on first sight.
func (uc *UserUseCase) Ensure(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.WrapError(domain.ErrUnauthorized, "ensure user", errors.New("missing user id"))
	}
	if len(userID) > maxUserIDLen {
		return domain.WrapError(domain.ErrInvalidInput, "ensure user", errors.New("user id too long"))
	}
	return uc.repo.Ensure(ctx, userID)
}

func (uc *UserUseCase) Get(ctx context.Context, userID string) (*domain.User, error) {
	return uc.repo.GetByID(ctx, userID)
}
