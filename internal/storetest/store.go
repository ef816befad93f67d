// Package storetest provides in-memory repositories for tests of the layers above storage.
package storetest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	authdomain "accounts/backend/internal/domain/auth"
	orgdomain "accounts/backend/internal/domain/organisation"
)

// Store keeps users, organisations and memberships in memory. It satisfies both
// authdomain.UserRepository (through Users) and orgdomain.Repository (through Organisations)
// with the same uniqueness rules as the database schema.
type Store struct {
	mu      sync.RWMutex
	users   map[string]authdomain.User
	orgs    map[string]orgdomain.Organisation
	members map[string]map[string]bool // org id -> user ids

	// Err, when set, is returned by every repository call.
	Err error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   make(map[string]authdomain.User),
		orgs:    make(map[string]orgdomain.Organisation),
		members: make(map[string]map[string]bool),
	}
}

// Users returns the store as a user repository.
func (s *Store) Users() *Users { return (*Users)(s) }

// Organisations returns the store as an organisation repository.
func (s *Store) Organisations() *Organisations { return (*Organisations)(s) }

// PutUser stores u directly, bypassing uniqueness checks.
func (s *Store) PutUser(u authdomain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// User returns the stored copy of id.
func (s *Store) User(id string) (authdomain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// PutOrganisation stores org with the given members.
func (s *Store) PutOrganisation(org orgdomain.Organisation, memberIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = org
	if s.members[org.ID] == nil {
		s.members[org.ID] = make(map[string]bool)
	}
	for _, id := range memberIDs {
		s.members[org.ID][id] = true
	}
}

// Members returns the sorted member ids of orgID.
func (s *Store) Members(orgID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id := range s.members[orgID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Users implements authdomain.UserRepository.
type Users Store

var _ authdomain.UserRepository = (*Users)(nil)

func (u *Users) Create(_ context.Context, user *authdomain.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return authdomain.ErrEmailExists
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*authdomain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, existing := range s.users {
		if existing.Email == email {
			found := existing
			return &found, nil
		}
	}
	return nil, authdomain.ErrUserNotFound
}

func (u *Users) GetByID(_ context.Context, id string) (*authdomain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	existing, ok := s.users[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	return &existing, nil
}

func (u *Users) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	existing, ok := s.users[id]
	if !ok {
		return authdomain.ErrUserNotFound
	}
	existing.PasswordHash = passwordHash
	existing.UpdatedAt = updatedAt
	s.users[id] = existing
	return nil
}

func (u *Users) SharesOrganisation(_ context.Context, userID, otherID string) (bool, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, ids := range s.members {
		if ids[userID] && ids[otherID] {
			return true, nil
		}
	}
	return false, nil
}

// Organisations implements orgdomain.Repository.
type Organisations Store

var _ orgdomain.Repository = (*Organisations)(nil)

func (o *Organisations) Create(_ context.Context, org *orgdomain.Organisation, ownerID string) error {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.orgs {
		if existing.Name == org.Name {
			return orgdomain.ErrDuplicateName
		}
	}
	s.orgs[org.ID] = *org
	s.members[org.ID] = map[string]bool{ownerID: true}
	return nil
}

func (o *Organisations) GetByID(_ context.Context, id string) (*orgdomain.Organisation, error) {
	s := (*Store)(o)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	org, ok := s.orgs[id]
	if !ok {
		return nil, orgdomain.ErrNotFound
	}
	return &org, nil
}

func (o *Organisations) GetByName(_ context.Context, name string) (*orgdomain.Organisation, error) {
	s := (*Store)(o)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, org := range s.orgs {
		if org.Name == name {
			found := org
			return &found, nil
		}
	}
	return nil, orgdomain.ErrNotFound
}

func (o *Organisations) ListByUser(_ context.Context, userID string) ([]*orgdomain.Organisation, error) {
	s := (*Store)(o)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var orgs []*orgdomain.Organisation
	for id, ids := range s.members {
		if ids[userID] {
			org := s.orgs[id]
			orgs = append(orgs, &org)
		}
	}
	slices.SortFunc(orgs, func(a, b *orgdomain.Organisation) int { return strings.Compare(a.Name, b.Name) })
	return orgs, nil
}

func (o *Organisations) AddMember(_ context.Context, orgID, userID string) error {
	s := (*Store)(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.orgs[orgID]; !ok {
		return orgdomain.ErrNotFound
	}
	s.members[orgID][userID] = true
	return nil
}

func (o *Organisations) IsMember(_ context.Context, orgID, userID string) (bool, error) {
	s := (*Store)(o)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.members[orgID][userID], nil
}
