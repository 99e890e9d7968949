package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Tests run at bcrypt.MinCost; the production cost only changes how long
// a hash takes, not any behaviour under test.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	passwords := []struct {
		name     string
		password string
	}{
		{"typical", "oatmeal-every-morning-1"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace kept verbatim", "  leading and trailing  "},
		{"exactly 72 bytes", strings.Repeat("a", 72)},
	}

	for _, tc := range passwords {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if !strings.HasPrefix(hash, "$2") {
				t.Errorf("Hash() output %q does not look like bcrypt", hash)
			}
			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() rejected the original password: %v", err)
			}
		})
	}
}

// The salt is random per call, so re-registering with the same password
// must never reproduce an old hash.
func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	first, _ := ps.Hash("same-password")
	second, _ := ps.Hash("same-password")

	if first == second {
		t.Error("two hashes of the same password are identical")
	}
}

// bcrypt would silently truncate at 72 bytes; Hash rejects instead.
func TestHash_RejectsOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() accepted a 73-byte password")
	}
}

func TestVerify_Rejections(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("the-real-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		plaintext string
	}{
		{"wrong password", hash, "the-wrong-password"},
		{"empty password", hash, ""},
		// Google sign-in accounts store no hash; a password login
		// attempt against one must fail, not match trivially.
		{"google-only account", "", "any-password"},
		{"corrupted hash column", "not-a-valid-bcrypt-hash", "the-real-password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ps.Verify(tt.hash, tt.plaintext); err == nil {
				t.Error("Verify() returned nil, want error")
			}
		})
	}
}
