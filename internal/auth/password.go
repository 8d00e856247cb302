package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost      int
	minLength int
}

func NewPasswordHasher(cost, minLength int) *PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost, minLength: minLength}
}

// Validate enforces the password policy. Entirely numeric passwords are
// rejected along with short ones.
func (h *PasswordHasher) Validate(password string) error {
	if len([]rune(password)) < h.minLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", h.minLength))
	}

	var hasLetter bool
	for _, r := range password {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return apperrors.InvalidInput("password must contain at least one letter")
	}
	return nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether password matches hash.
func (h *PasswordHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
