package organisation

import (
	"context"
	"errors"
	"strings"
	"time"

	authdomain "accounts/backend/internal/domain/auth"
	domain "accounts/backend/internal/domain/organisation"
	"accounts/backend/internal/usecase/validation"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Service encapsulates organisation use cases.
type Service struct {
	repo    domain.Repository
	users   authdomain.UserRepository
	nowFunc func() time.Time
}

// NewService constructs an organisation service.
func NewService(repo domain.Repository, users authdomain.UserRepository) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		nowFunc: time.Now,
	}
}

// CreateInput contains the payload required for organisation creation.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListForUser returns the organisations userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*domain.Organisation, error) {
	orgs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []*domain.Organisation{}
	}
	return orgs, nil
}

// Get fetches an organisation userID is a member of. Non-members get ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, orgID string) (*domain.Organisation, error) {
	orgID = strings.TrimSpace(orgID)
	if !validID(orgID) {
		return nil, domain.ErrNotFound
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.IsMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

// Create stores a new organisation with userID as its first member.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*domain.Organisation, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	var errs validation.Errors
	errs.Required("name", input.Name)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByName(ctx, input.Name); err == nil {
		return nil, domain.ErrDuplicateName
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	org := &domain.Organisation{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   s.nowFunc().UTC(),
	}
	if err := s.repo.Create(ctx, org, userID); err != nil {
		return nil, err
	}
	return org, nil
}

// AddMember adds userID to orgID. Adding an existing member is a no-op.
// The requester must already belong to the organisation.
func (s *Service) AddMember(ctx context.Context, requesterID, orgID, userID string) error {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)

	var errs validation.Errors
	errs.Required("userId", userID)
	if err := errs.Err(); err != nil {
		return err
	}

	if !validID(orgID) {
		return domain.ErrNotFound
	}
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return err
	}
	member, err := s.repo.IsMember(ctx, orgID, requesterID)
	if err != nil {
		return err
	}
	if !member {
		return domain.ErrNotFound
	}

	if !validID(userID) {
		return authdomain.ErrUserNotFound
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.repo.AddMember(ctx, orgID, userID); err != nil {
		return oops.With("org_id", orgID).With("user_id", userID).Wrap(err)
	}
	return nil
}

// validID reports whether id can name a stored row; ids are UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
