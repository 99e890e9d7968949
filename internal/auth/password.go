// Password hashing for email/password accounts.
//
// Not every nutrilog account has a password: accounts created through
// Google sign-in store an empty PasswordHash and authenticate with the
// OAuth flow instead. Everything here only applies to the email/password
// path.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and the slowness is the point: a leaked
// users table with bcrypt hashes costs an attacker seconds per guess
// instead of billions of guesses per second with a fast hash. It also
// generates and embeds a random salt per hash, so the stored string is
// self-contained — no separate salt column in the users table.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor: 2^12 rounds, roughly a quarter
// of a second per hash on current server hardware. Login pays that cost
// once per session; mealctl then reuses the bearer token, so the slow
// path is never on the polling loop.
const defaultCost = 12

// PasswordService hashes and verifies passwords at a fixed bcrypt cost.
// The cost is a field rather than a package constant so tests can run at
// the bcrypt minimum instead of paying ~250ms per fixture.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService at the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest returns a PasswordService at the given cost.
// Tests pass bcrypt.MinCost; never use a reduced cost in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password. The returned string embeds the salt
// and cost, so it goes straight into users.password_hash and Verify can
// decode it without any extra bookkeeping.
//
// bcrypt silently truncates input beyond 72 bytes; we reject such
// passwords instead so two long passwords sharing a 72-byte prefix can
// never verify against each other's hash.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash; nil means it
// does. bcrypt's comparison is constant-time, so response timing leaks
// nothing about how close a guess was.
//
// An empty hash (a Google-only account) never verifies: bcrypt rejects
// it as malformed, which is exactly the fail-closed behaviour the login
// path needs.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
