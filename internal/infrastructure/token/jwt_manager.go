package token

import (
	"maps"
	"time"

	usecase "accounts/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// JWTManager issues and validates HMAC-signed JWTs.
type JWTManager struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	parser     *jwt.Parser
	nowFunc    func() time.Time
}

// Ensure JWTManager implements the TokenManager interface.
var _ usecase.TokenManager = (*JWTManager)(nil)

// Option customises a JWTManager.
type Option func(*JWTManager)

// WithClock replaces the wall clock used for issuing and checking expiry.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) {
		m.nowFunc = now
	}
}

// NewJWTManager constructs a manager from validated auth configuration.
func NewJWTManager(cfg usecase.Config, opts ...Option) (*JWTManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &JWTManager{
		secret:     []byte(cfg.SecretKey),
		method:     jwt.GetSigningMethod(cfg.Algorithm),
		defaultTTL: cfg.DefaultTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return m.nowFunc().UTC() }),
	)
	return m, nil
}

// Issue signs claims with the configured default lifetime.
func (m *JWTManager) Issue(claims map[string]any) (string, error) {
	return m.IssueWithTTL(claims, m.defaultTTL)
}

// IssueWithTTL signs a copy of claims with exp = now + ttl and iat = now.
func (m *JWTManager) IssueWithTTL(claims map[string]any, ttl time.Duration) (string, error) {
	now := m.nowFunc().UTC()

	payload := make(jwt.MapClaims, len(claims)+2)
	maps.Copy(payload, claims)
	payload["iat"] = jwt.NewNumericDate(now)
	payload["exp"] = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(m.method, payload).SignedString(m.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and extracts the subject.
// Failures are reported in the result, never as errors.
func (m *JWTManager) Verify(tokenString string) usecase.Result {
	claims := jwt.MapClaims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return usecase.Unauthenticated(usecase.ReasonInvalidToken)
	}

	subject, _ := claims[usecase.SubjectClaim].(string)
	if subject == "" {
		return usecase.Unauthenticated(usecase.ReasonMissingSubject)
	}
	return usecase.Authenticated(subject)
}
