package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const maxPlannedFolders = 50

type OnboardingUseCase struct {
	users   ports.UserRepository
	planner ports.FolderPlanner
	folders ports.FolderService
}

func NewOnboardingUseCase(users ports.UserRepository, planner ports.FolderPlanner, folders ports.FolderService) *OnboardingUseCase {
	return &OnboardingUseCase{
		users:   users,
		planner: planner,
		folders: folders,
	}
}

// Onboard saves the profile, asks for a folder structure and creates it in the order received.
func (uc *OnboardingUseCase) Onboard(ctx context.Context, userID string, profile domain.OnboardingProfile) ([]domain.Folder, error) {
	profile.Industry = strings.TrimSpace(profile.Industry)
	profile.TeamSize = strings.TrimSpace(profile.TeamSize)
	profile.Description = strings.TrimSpace(profile.Description)
	if profile.Industry == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "onboard", errors.New("industry is required"))
	}

	if err := uc.users.SaveProfile(ctx, userID, profile); err != nil {
		return nil, fmt.Errorf("save onboarding profile: %w", err)
	}

	plan, err := uc.planner.PlanFolders(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("plan folder structure: %w", err)
	}
	if err := validateFolderPlan(plan); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "plan folder structure", err)
	}

	created := make([]domain.Folder, 0, len(plan))
	ids := make(map[string]string, len(plan))
	for _, entry := range plan {
		var parentID *string
		if entry.ParentKey != "" {
			id := ids[entry.ParentKey]
			parentID = &id
		}
		folder, err := uc.folders.Create(ctx, userID, entry.Name, parentID)
		if err != nil {
			return created, fmt.Errorf("create planned folder %q: %w", entry.Name, err)
		}
		ids[entry.Key] = folder.ID
		created = append(created, *folder)
	}
	return created, nil
}

// validateFolderPlan accepts only backward parent references, which also rules out cycles.
func validateFolderPlan(plan []domain.FolderPlanEntry) error {
	if len(plan) == 0 {
		return errors.New("empty folder plan")
	}
	if len(plan) > maxPlannedFolders {
		return fmt.Errorf("folder plan has %d entries, max %d", len(plan), maxPlannedFolders)
	}
	seen := make(map[string]struct{}, len(plan))
	for i, entry := range plan {
		if strings.TrimSpace(entry.Key) == "" {
			return fmt.Errorf("entry %d: empty key", i)
		}
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("entry %d (%s): empty name", i, entry.Key)
		}
		if _, dup := seen[entry.Key]; dup {
			return fmt.Errorf("entry %d: duplicate key %q", i, entry.Key)
		}
		if entry.ParentKey != "" {
			if _, ok := seen[entry.ParentKey]; !ok {
				return fmt.Errorf("entry %d (%s): parent %q is not an earlier entry", i, entry.Key, entry.ParentKey)
			}
		}
		seen[entry.Key] = struct{}{}
	}
	return nil
}
