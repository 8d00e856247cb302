package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// Provisioner creates the wishlist of a newly registered user.
type Provisioner interface {
	Provision(ctx context.Context, userID string) (*domain.Wishlist, error)
}

// AccountService implements signup, login, token and password reset flows.
type AccountService struct {
	tx            Transactor
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	wishlists     Provisioner
	jwtManager    *auth.JWTManager
	passwords     *auth.PasswordHasher
	events        event.Publisher
	resetURL      string
	logger        *slog.Logger
}

// NewAccountService creates a new account service. resetURL is the base of
// the link mailed for password resets; the token is appended as a query
// parameter.
func NewAccountService(
	tx Transactor,
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	wishlists Provisioner,
	jwtManager *auth.JWTManager,
	passwords *auth.PasswordHasher,
	events event.Publisher,
	resetURL string,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		tx:            tx,
		users:         users,
		refreshTokens: refreshTokens,
		wishlists:     wishlists,
		jwtManager:    jwtManager,
		passwords:     passwords,
		events:        events,
		resetURL:      resetURL,
		logger:        logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// ConfirmResetInput holds the parameters for completing a password reset.
type ConfirmResetInput struct {
	Token         string
	NewPassword   string
	ReNewPassword string
}

// Register creates a customer account and its empty wishlist in one
// transaction, then issues tokens.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	user, err := s.createUser(ctx, input.Email, input.Password, domain.RoleCustomer)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// CreateAdmin creates an administrator account. It is used by the CLI.
func (s *AccountService) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.createUser(ctx, email, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "admin created",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

func (s *AccountService) createUser(ctx context.Context, email, password, role string) (*domain.User, error) {
	email = normalizeEmail(email)
	if !validator.IsEmail(email) {
		return nil, apperrors.InvalidInput("enter a valid email address")
	}
	if err := s.passwords.Validate(password); err != nil {
		return nil, err
	}

	hashedPassword, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if _, err := s.wishlists.Provision(ctx, user.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a user with email and password, returning tokens.
// Unknown emails, wrong passwords and inactive accounts are
// indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperrors.Unauthorized("incorrect credentials")
		}
		return nil, nil, fmt.Errorf("get user for login: %w", err)
	}

	if !user.IsActive || !s.passwords.Compare(user.PasswordHash, input.Password) {
		return nil, nil, apperrors.Unauthorized("incorrect credentials")
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// Logout revokes one refresh token of the authenticated user.
func (s *AccountService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil || claims.UserID != userID {
		return apperrors.InvalidInput("token is invalid or expired")
	}

	if err := s.refreshTokens.Revoke(ctx, auth.HashToken(refreshToken)); err != nil {
		if isNotFound(err) {
			return apperrors.InvalidInput("token is invalid or expired")
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
	return nil
}

// RefreshToken validates a refresh token and rotates it into a new pair.
func (s *AccountService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("token is invalid or expired")
	}

	tokenHash := auth.HashToken(refreshToken)
	stored, err := s.refreshTokens.GetByHash(ctx, tokenHash)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.Unauthorized("token is invalid or expired")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if !stored.Usable(time.Now().UTC()) {
		return nil, apperrors.Unauthorized("token is invalid or expired")
	}

	// Revoke only succeeds for the first of two concurrent refreshes.
	if err := s.refreshTokens.Revoke(ctx, tokenHash); err != nil {
		if isNotFound(err) {
			return nil, apperrors.Unauthorized("token is invalid or expired")
		}
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("token is invalid or expired")
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)
	return tokens, nil
}

// RequestPasswordReset issues a reset link for the account with email and
// publishes it for delivery. The link is also returned to the caller.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", apperrors.NotFoundBy("user", "email", email)
		}
		return "", fmt.Errorf("get user for password reset: %w", err)
	}
	if !user.IsActive {
		return "", apperrors.InvalidInput("the user account is not active")
	}

	token, err := s.jwtManager.GeneratePasswordResetToken(user.ID, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	link, err := s.resetLink(token)
	if err != nil {
		return "", err
	}

	if err := s.events.PublishUserPasswordReset(ctx, user, link); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)
	return link, nil
}

func (s *AccountService) resetLink(token string) (string, error) {
	u, err := url.Parse(s.resetURL)
	if err != nil {
		return "", fmt.Errorf("parse password reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConfirmPasswordReset sets a new password using a reset token. A token
// stops working once the password it was issued against changes, so it can
// be used only once. All refresh tokens are revoked afterwards.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, input ConfirmResetInput) error {
	if input.NewPassword != input.ReNewPassword {
		return apperrors.InvalidInput("passwords do not match")
	}

	invalid := apperrors.InvalidInput("invalid password reset token")
	claims, err := s.jwtManager.ValidatePasswordResetToken(input.Token)
	if err != nil {
		return invalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return invalid
		}
		return fmt.Errorf("get user for password reset: %w", err)
	}
	if !user.IsActive || auth.Fingerprint(user.PasswordHash) != claims.Fingerprint {
		return invalid
	}

	if err := s.passwords.Validate(input.NewPassword); err != nil {
		return err
	}
	hashedPassword, err := s.passwords.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
			return fmt.Errorf("update user password: %w", err)
		}
		if err := s.refreshTokens.RevokeByUserID(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)
	return nil
}

// GetProfile retrieves a user by their ID.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// generateTokenPair issues a pair and stores the refresh token hash.
func (s *AccountService) generateTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.jwtManager.RefreshExpiry())
	if err := s.refreshTokens.Create(ctx, user.ID, auth.HashToken(refreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
