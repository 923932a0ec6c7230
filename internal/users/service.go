package users

import (
	"context"
)

// Service handles user profile business logic.
type Service struct {
	store Store
}

// NewService builds a Service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CurrentUser returns the safe projection of the authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (SafeUser, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return SafeUser{}, err
	}
	return user.Safe(), nil
}
