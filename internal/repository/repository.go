package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields AlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail matches the email case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// RefreshTokenRepository defines the interface for refresh token persistence operations.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke revokes one active token. It returns NotFound when no active
	// token has that hash.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByUserID revokes all refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string) error
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Update(ctx context.Context, c *domain.Category) error

	// Delete fails with Conflict while products still reference the category.
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// LockByID is GetByID holding a row lock until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDs returns the products that exist among ids, keyed by ID. Inside
	// a transaction the rows stay share-locked until it ends.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error

	// List returns one page of products ordered by rank then creation time,
	// plus the total number of matches.
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
}

// WishlistRepository defines the interface for wishlist persistence
// operations. Mutating methods are expected to run inside a transaction that
// holds the row lock taken by LockByUserID.
type WishlistRepository interface {
	// Create inserts an empty wishlist for its owner.
	Create(ctx context.Context, w *domain.Wishlist) error

	// GetByUserID returns the wishlist header without products.
	GetByUserID(ctx context.Context, userID string) (*domain.Wishlist, error)

	// GetByOwnerEmail resolves the owner by email and returns the header.
	GetByOwnerEmail(ctx context.Context, email string) (*domain.Wishlist, error)

	// LockByUserID returns the header and holds a row lock on it until the
	// surrounding transaction ends.
	LockByUserID(ctx context.Context, userID string) (*domain.Wishlist, error)

	// LockHolders locks every wishlist holding productID and returns them
	// with their owners' emails.
	LockHolders(ctx context.Context, productID string) ([]domain.WishlistHolder, error)

	// CategoryClashes lists members of categoryID sharing a wishlist with
	// productID.
	CategoryClashes(ctx context.Context, productID, categoryID string) ([]domain.CategoryClash, error)

	// HolderEmailsByCategory returns the owner emails of wishlists holding a
	// product of categoryID.
	HolderEmailsByCategory(ctx context.Context, categoryID string) ([]string, error)

	// ListProducts returns members with their categories, in insertion order.
	ListProducts(ctx context.Context, wishlistID string) ([]*domain.Product, error)

	// AddProducts appends products in the given order.
	AddProducts(ctx context.Context, wishlistID string, productIDs []string) error

	// RemoveProduct reports whether the product was a member.
	RemoveProduct(ctx context.Context, wishlistID, productID string) (bool, error)

	// ClearProducts removes every member.
	ClearProducts(ctx context.Context, wishlistID string) error

	// Touch bumps updated_at.
	Touch(ctx context.Context, wishlistID string) error
}
