// Package password hashes credentials with argon2id and verifies stored hashes.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	usecase "accounts/backend/internal/usecase/auth"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	saltLen = 16
	keyLen  = 32

	variant = "argon2id"
)

// Argon2Hasher implements usecase.PasswordHasher.
//
// Every argon2 computation allocates MemoryKiB of memory, so the number running at once is
// bounded by a semaphore sized from HashCost.Concurrency. Hashes written by the previous
// bcrypt scheme still verify and are reported by NeedsRehash.
type Argon2Hasher struct {
	cost usecase.HashCost
	sem  *semaphore.Weighted
}

var _ usecase.PasswordHasher = (*Argon2Hasher)(nil)

// NewArgon2Hasher constructs a hasher from validated auth configuration.
func NewArgon2Hasher(cfg usecase.Config) *Argon2Hasher {
	return &Argon2Hasher{
		cost: cfg.Hash,
		sem:  semaphore.NewWeighted(int64(cfg.Hash.Concurrency)),
	}
}

// Hash returns a PHC-formatted argon2id hash of plaintext with a fresh random salt.
func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(usecase.ErrInvalidInput, "password cannot be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := h.derive([]byte(plaintext), salt, h.cost.Iterations, h.cost.MemoryKiB, h.cost.Parallelism, keyLen)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		variant,
		argon2.Version,
		h.cost.MemoryKiB,
		h.cost.Iterations,
		h.cost.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches stored. Malformed hashes never match.
func (h *Argon2Hasher) Verify(plaintext, stored string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil
	}

	p, err := parseHash(stored)
	if err != nil {
		return false
	}
	computed := h.derive([]byte(plaintext), p.salt, p.iterations, p.memoryKiB, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

// NeedsRehash is true for bcrypt hashes and for argon2id hashes made with a different cost.
func (h *Argon2Hasher) NeedsRehash(stored string) bool {
	p, err := parseHash(stored)
	if err != nil {
		return true
	}
	return p.memoryKiB != h.cost.MemoryKiB ||
		p.iterations != h.cost.Iterations ||
		p.parallelism != h.cost.Parallelism
}

func (h *Argon2Hasher) derive(password, salt []byte, iterations, memoryKiB uint32, threads uint8, length uint32) []byte {
	// Background never cancels, so Acquire only returns once a slot is free.
	_ = h.sem.Acquire(context.Background(), 1)
	defer h.sem.Release(1)
	return argon2.IDKey(password, salt, iterations, memoryKiB, threads, length)
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

type params struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// maxMemoryKiB caps the memory a stored hash may ask for (4 GiB).
const maxMemoryKiB = 4 * 1024 * 1024

func parseHash(encoded string) (params, error) {
	errb := oops.Code("AUTH_INVALID_HASH")

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params{}, errb.Errorf("invalid hash format")
	}
	if parts[1] != variant {
		return params{}, errb.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params{}, errb.Wrap(err)
	}
	if version != argon2.Version {
		return params{}, errb.Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return params{}, errb.Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return params{}, errb.Errorf("threads value %d out of range", threads)
	}
	if memory == 0 || memory > maxMemoryKiB || iterations == 0 {
		return params{}, errb.Errorf("cost parameters out of range")
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return params{}, errb.Wrap(err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return params{}, errb.Wrap(err)
	}
	if len(salt) == 0 || len(key) == 0 || len(key) > 1024 {
		return params{}, errb.Errorf("invalid salt or key length")
	}

	return params{
		memoryKiB:   memory,
		iterations:  iterations,
		parallelism: uint8(threads),
		salt:        salt,
		key:         key,
	}, nil
}
