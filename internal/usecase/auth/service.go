package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	domain "accounts/backend/internal/domain/auth"
	"accounts/backend/internal/usecase/validation"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Service coordinates registration and login between domain and infrastructure.
type Service struct {
	users   domain.UserRepository
	hasher  PasswordHasher
	tokens  TokenManager
	logger  *slog.Logger
	nowFunc func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewService constructs an auth service.
func NewService(users domain.UserRepository, hasher PasswordHasher, tokens TokenManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

func (in *RegisterInput) normalise() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
}

func (in RegisterInput) validate() error {
	var errs validation.Errors
	if errs.Required("first_name", in.FirstName) && validation.ContainsDigit(in.FirstName) {
		errs.Add("first_name", "first name can only contain alphabet and no numbers")
	}
	if errs.Required("last_name", in.LastName) && validation.ContainsDigit(in.LastName) {
		errs.Add("last_name", "last name can only contain alphabet and no numbers")
	}
	if errs.Required("email", in.Email) && !validation.IsEmail(in.Email) {
		errs.Add("email", "value is not a valid email address")
	}
	if in.Password == "" {
		errs.Add("password", validation.MsgRequired)
	}
	if errs.Required("phone", in.Phone) && !validation.IsDigits(in.Phone) {
		errs.Add("phone", "Invalid phone number "+in.Phone+" provided, phone number can only be digit")
	}
	return errs.Err()
}

// Register creates a new account and returns a token for it alongside the stored user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, *domain.User, error) {
	in.normalise()
	if err := in.validate(); err != nil {
		return "", nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return "", nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return "", nil, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", nil, oops.With("operation", "hash password").Wrap(err)
	}

	now := s.nowFunc().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", nil, err
	}

	token, err := s.issueFor(user)
	if err != nil {
		return "", nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return token, user.WithoutSecrets(), nil
}

// Login validates credentials and returns a token plus user.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, *domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.verifyDecoy(creds.Password)
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		return "", nil, domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, creds.Password)
	}

	token, err := s.issueFor(user)
	if err != nil {
		return "", nil, err
	}
	return token, user.WithoutSecrets(), nil
}

// upgradeHash replaces a legacy hash after a successful login. Failure only costs
// another attempt on the next login.
func (s *Service) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed, s.nowFunc().UTC()); err != nil {
		s.logger.WarnContext(ctx, "storing upgraded password hash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hashed
}

// verifyDecoy spends the same hashing work as a real password check, so unknown emails
// take as long to reject as wrong passwords.
func (s *Service) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password")
		if err != nil {
			s.logger.Warn("decoy hash failed", "error", err)
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash != "" {
		_ = s.hasher.Verify(password, s.decoyHash)
	}
}

func (s *Service) issueFor(user *domain.User) (string, error) {
	token, err := s.tokens.Issue(map[string]any{SubjectClaim: user.ID})
	if err != nil {
		return "", oops.With("operation", "issue token").With("user_id", user.ID).Wrap(err)
	}
	return token, nil
}
