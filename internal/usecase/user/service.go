package user

import (
	"context"
	"strings"

	domain "accounts/backend/internal/domain/auth"

	"github.com/google/uuid"
)

// Service exposes account lookups to authenticated callers.
type Service struct {
	repo domain.UserRepository
}

// NewService constructs a user service around the provided repository.
func NewService(repo domain.UserRepository) *Service {
	return &Service{repo: repo}
}

// Get returns the account id when requesterID may see it: the account itself, or one that
// shares an organisation with the requester. Anything else, including ids that are not
// UUIDs, reads as ErrUserNotFound so callers cannot enumerate accounts.
func (s *Service) Get(ctx context.Context, requesterID, id string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}

	if id != requesterID {
		shared, err := s.repo.SharesOrganisation(ctx, requesterID, id)
		if err != nil {
			return nil, err
		}
		if !shared {
			return nil, domain.ErrUserNotFound
		}
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.WithoutSecrets(), nil
}
