package app

import (
	"context"
	"fmt"
	"strings"

	"creatorhub/internal/usertoken"
	"creatorhub/pkg/domain"
)

// SyncUser registers the caller on first sign-in and refreshes profile fields
// on subsequent calls. New accounts are seeded with the starter credit grant;
// an existing balance is never touched.
func (a *App) SyncUser(ctx context.Context, id usertoken.Identity) (domain.User, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return domain.User{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = id.Email
	}
	user, err := a.store.UpsertUser(domain.User{
		ID:       id.UserID,
		Name:     name,
		Email:    strings.TrimSpace(id.Email),
		ImageURL: strings.TrimSpace(id.Picture),
		Credits:  a.signupCredits,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("sync user: %w", err)
	}
	return user, nil
}

// GetMe returns the caller's profile and balance.
func (a *App) GetMe(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}
