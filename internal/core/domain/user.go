package domain

import "time"

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Industry    string     `json:"industry,omitempty"`
	TeamSize    string     `json:"teamSize,omitempty"`
	Description string     `json:"description,omitempty"`
	OnboardedAt *time.Time `json:"onboardedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OnboardingProfile is what the onboarding form collects.
type OnboardingProfile struct {
	Industry    string `json:"industry"`
	TeamSize    string `json:"teamSize"`
	Description string `json:"description"`
}
