package service

import (
	"context"
	"errors"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Transactor runs fn inside one database transaction; repositories called
// with the ctx passed to fn join it. *database.TxManager satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WishlistCache caches the public wishlist view by owner email. Invalidate
// bumps a per-email version; Set stores the view only if the version still
// matches the one read before the view was loaded.
type WishlistCache interface {
	Get(ctx context.Context, email string) (*domain.Wishlist, bool, error)
	Version(ctx context.Context, email string) (int64, error)
	Set(ctx context.Context, email string, w *domain.Wishlist, version int64) (bool, error)
	Invalidate(ctx context.Context, email string) error
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
