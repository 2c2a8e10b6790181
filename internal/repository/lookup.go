package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"almondsense/internal/domain"
)

// SubmissionsByEmail returns the submissions sent from email, newest first.
// Matching is case-insensitive.
func SubmissionsByEmail(ctx context.Context, db *gorm.DB, email string) ([]domain.Submission, error) {
	var out []domain.Submission
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("submissions by email: %w", err)
	}
	return out, nil
}

// ProfilesByEmail resolves the loose e-mail relation between a submission
// and the customers who registered with that address. The relation is not
// enforced: zero, one or several profiles may match.
func ProfilesByEmail(ctx context.Context, db *gorm.DB, email string) ([]domain.Profile, error) {
	var out []domain.Profile
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("profiles by email: %w", err)
	}
	return out, nil
}

// ProfileByUserID returns the profile owned by an identity-provider account.
func ProfileByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile by user: %w", err)
	}
	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
