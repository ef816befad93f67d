package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/samber/oops"
)

const (
	// DefaultAlgorithm is the signing algorithm used when none is configured.
	DefaultAlgorithm = "HS256"
	// DefaultTokenTTL applies when no lifetime is configured. There are no refresh tokens.
	DefaultTokenTTL = 4 * time.Minute
)

var (
	// ErrConfiguration means the signing or hashing configuration cannot be used.
	// The process must not start when it is returned.
	ErrConfiguration = errors.New("invalid auth configuration")
	// ErrInvalidInput indicates malformed input to hashing, such as an empty password.
	ErrInvalidInput = errors.New("invalid input")
)

var supportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// HashCost holds the argon2id cost parameters and the number of hashes allowed to run at once.
type HashCost struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	Concurrency int
}

// DefaultHashCost follows the OWASP argon2id baseline.
func DefaultHashCost() HashCost {
	return HashCost{
		MemoryKiB:   64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		Concurrency: 4,
	}
}

// Config is constructed once at startup and handed to the token and password services.
// Nothing in the auth core reads process-wide state after that.
type Config struct {
	SecretKey  string
	Algorithm  string
	DefaultTTL time.Duration
	// Leeway tolerates clock skew when checking expiry. Zero disables it.
	Leeway time.Duration
	Hash   HashCost
}

// NewConfig applies defaults and validates the result.
func NewConfig(secretKey, algorithm string, defaultTTL, leeway time.Duration, cost HashCost) (Config, error) {
	cfg := Config{
		SecretKey:  secretKey,
		Algorithm:  algorithm,
		DefaultTTL: defaultTTL,
		Leeway:     leeway,
		Hash:       cost,
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTokenTTL
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports an ErrConfiguration-wrapped error for unusable settings.
func (c Config) Validate() error {
	errb := oops.Code("AUTH_CONFIGURATION")
	if c.SecretKey == "" {
		return errb.Wrapf(ErrConfiguration, "SECRET_KEY is required")
	}
	if !slices.Contains(supportedAlgorithms, c.Algorithm) {
		return errb.With("algorithm", c.Algorithm).Wrapf(ErrConfiguration, "unsupported signing algorithm %q", c.Algorithm)
	}
	if c.DefaultTTL < 0 {
		return errb.Wrapf(ErrConfiguration, "token ttl must not be negative")
	}
	if c.Leeway < 0 {
		return errb.Wrapf(ErrConfiguration, "token leeway must not be negative")
	}
	if c.Hash.MemoryKiB == 0 || c.Hash.Iterations == 0 || c.Hash.Parallelism == 0 {
		return errb.Wrapf(ErrConfiguration, "argon2 cost parameters must be positive")
	}
	if c.Hash.Concurrency <= 0 {
		return errb.Wrapf(ErrConfiguration, "hash concurrency must be positive")
	}
	return nil
}
