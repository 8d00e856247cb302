package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// AccountService is the account surface the handlers depend on.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, *domain.TokenPair, error)
	Login(ctx context.Context, input service.LoginInput) (*domain.User, *domain.TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, input service.ConfirmResetInput) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
}

// CatalogService is the catalog surface the handlers depend on.
type CatalogService interface {
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	UpdateCategory(ctx context.Context, id, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, input service.CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
}

// WishlistService is the wishlist surface the handlers depend on.
type WishlistService interface {
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	AddProducts(ctx context.Context, userID string, productIDs []string) (*service.AddResult, error)
	ReplaceProducts(ctx context.Context, userID string, productIDs []string) (*service.AddResult, error)
	RemoveProduct(ctx context.Context, userID, productID string) error
	GetByOwnerEmail(ctx context.Context, email string) (*domain.Wishlist, error)
}

var (
	_ AccountService  = (*service.AccountService)(nil)
	_ CatalogService  = (*service.CatalogService)(nil)
	_ WishlistService = (*service.WishlistService)(nil)
)

// authenticatedUser returns the caller's user ID, writing a 401 when the
// request carries no claims.
func authenticatedUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user not authenticated"), logger)
		return "", false
	}
	return userID, true
}
