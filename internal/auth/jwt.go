package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/middleware"
)

const issuer = "storefront"

// Token types carried in the "typ" claim so one kind of token can never be
// accepted in place of another.
const (
	TokenTypeAccess        = "access"
	TokenTypeRefresh       = "refresh"
	TokenTypePasswordReset = "password_reset"
)

// ErrWrongTokenType is returned when a valid token of another type is presented.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims represents the JWT claims for an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims represents the JWT claims for a refresh token.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// ResetClaims represents the JWT claims for a password reset token. The
// fingerprint ties the token to the password hash it was issued against, so
// it stops validating once the password changes.
type ResetClaims struct {
	UserID      string `json:"user_id"`
	Fingerprint string `json:"fp"`
	Type        string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTManager handles token generation and validation.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	resetExpiry   time.Duration
	now           func() time.Time
}

// NewJWTManager creates a new JWT manager with the given secret and expiry durations.
func NewJWTManager(secret string, accessExpiry, refreshExpiry, resetExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		resetExpiry:   resetExpiry,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RefreshExpiry is the lifetime of refresh tokens.
func (m *JWTManager) RefreshExpiry() time.Duration {
	return m.refreshExpiry
}

func (m *JWTManager) registered(subject string, expiry time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		Issuer:    issuer,
	}
}

func (m *JWTManager) sign(claims jwt.Claims, what string) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", what, err)
	}
	return signed, nil
}

// GenerateAccessToken creates a signed JWT access token containing userID, email, and role.
func (m *JWTManager) GenerateAccessToken(userID, email, role string) (string, error) {
	return m.sign(&Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		Type:             TokenTypeAccess,
		RegisteredClaims: m.registered(userID, m.accessExpiry),
	}, TokenTypeAccess)
}

// GenerateRefreshToken creates a signed JWT refresh token. Each token carries
// a unique ID so two tokens issued in the same second still differ.
func (m *JWTManager) GenerateRefreshToken(userID string) (string, error) {
	return m.sign(&RefreshClaims{
		UserID:           userID,
		Type:             TokenTypeRefresh,
		RegisteredClaims: m.registered(userID, m.refreshExpiry),
	}, TokenTypeRefresh)
}

// GeneratePasswordResetToken creates a reset token bound to passwordHash.
func (m *JWTManager) GeneratePasswordResetToken(userID, passwordHash string) (string, error) {
	return m.sign(&ResetClaims{
		UserID:           userID,
		Fingerprint:      Fingerprint(passwordHash),
		Type:             TokenTypePasswordReset,
		RegisteredClaims: m.registered(userID, m.resetExpiry),
	}, "password reset")
}

// ValidateAccessToken parses and validates an access token, returning the claims.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := m.parse(tokenString, claims, "access"); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ValidateRefreshToken parses and validates a refresh token, returning the claims.
func (m *JWTManager) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenString, claims, "refresh"); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ValidatePasswordResetToken parses a reset token. The caller still has to
// compare the fingerprint against the user's current password hash.
func (m *JWTManager) ValidatePasswordResetToken(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := m.parse(tokenString, claims, "password reset"); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypePasswordReset {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenString string, claims jwt.Claims, what string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return fmt.Errorf("parse %s token: %w", what, err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid %s token claims", what)
	}
	return nil
}

// Validator adapts the manager to the bearer auth middleware.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		c, err := m.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: c.UserID, Email: c.Email, Role: c.Role}, nil
	}
}

// HashToken returns the hex SHA-256 of a token; only hashes are stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Fingerprint derives a short, non-reversible tag of a password hash.
func Fingerprint(passwordHash string) string {
	return HashToken(passwordHash)[:16]
}
