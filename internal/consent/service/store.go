package service

import (
	"context"

	"sitepulse/internal/consent/models"
)

// Store is one visitor's consent, bound at session start. Trackers hold it
// and ask on every tracking attempt.
type Store struct {
	svc       *Service
	visitorID string
	region    models.Region
}

func (v *Store) VisitorID() string { return v.visitorID }

// GetConsent never fails; storage problems read as undecided.
func (v *Store) GetConsent(ctx context.Context) models.State {
	return v.svc.get(ctx, v.visitorID, v.region)
}

func (v *Store) SetConsent(ctx context.Context, choices models.Choices) (models.State, error) {
	state, err := v.svc.Set(ctx, v.visitorID, choices)
	if err != nil {
		return state, err
	}
	state.Region = v.region
	return state, nil
}

func (v *Store) HasCategory(ctx context.Context, c models.Category) bool {
	if c == models.CategoryEssential {
		return true
	}
	return v.GetConsent(ctx).Granted(c)
}

func (v *Store) Clear(ctx context.Context) error {
	return v.svc.Clear(ctx, v.visitorID)
}

// ShouldPrompt reports whether the banner must be shown.
func (v *Store) ShouldPrompt(ctx context.Context) bool {
	return !v.GetConsent(ctx).Decided()
}
