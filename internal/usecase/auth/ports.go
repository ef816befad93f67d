package auth

import "time"

// SubjectClaim is the token claim carrying the account id. Renaming it breaks issued tokens.
const SubjectClaim = "userId"

// TokenManager abstracts token issuance and verification.
type TokenManager interface {
	Issue(claims map[string]any) (string, error)
	IssueWithTTL(claims map[string]any, ttl time.Duration) (string, error)
	Verify(token string) Result
}

// PasswordHasher abstracts one-way credential hashing.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) bool
	// NeedsRehash reports stored hashes produced by an older scheme or cost.
	NeedsRehash(stored string) bool
}
