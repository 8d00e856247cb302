package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	wishlistColumns = `w.id, w.user_id, w.created_at, w.updated_at`

	lockWishlistQuery = `
		SELECT ` + wishlistColumns + `
		FROM wishlists w
		WHERE w.user_id = $1
		FOR UPDATE`

	listWishlistProductsQuery = `
		SELECT p.id, p.name, p.price, p.category_id, c.name, p.rank, p.created_at
		FROM wishlist_products wp
		JOIN products p ON p.id = wp.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE wp.wishlist_id = $1
		ORDER BY wp.position`

	lockHoldersQuery = `
		SELECT w.id, u.email
		FROM wishlist_products wp
		JOIN wishlists w ON w.id = wp.wishlist_id
		JOIN users u ON u.id = w.user_id
		WHERE wp.product_id = $1
		ORDER BY w.id
		FOR UPDATE OF w`

	categoryClashesQuery = `
		SELECT wp.wishlist_id, other.product_id
		FROM wishlist_products wp
		JOIN wishlist_products other
			ON other.wishlist_id = wp.wishlist_id AND other.product_id <> wp.product_id
		JOIN products p ON p.id = other.product_id
		WHERE wp.product_id = $1 AND p.category_id = $2
		ORDER BY wp.wishlist_id, other.position`

	categoryHolderEmailsQuery = `
		SELECT DISTINCT u.email
		FROM wishlist_products wp
		JOIN products p ON p.id = wp.product_id
		JOIN wishlists w ON w.id = wp.wishlist_id
		JOIN users u ON u.id = w.user_id
		WHERE p.category_id = $1
		ORDER BY u.email`

	insertWishlistProductQuery = `
		INSERT INTO wishlist_products (wishlist_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (wishlist_id, product_id) DO NOTHING`
)

// WishlistRepository implements repository.WishlistRepository using PostgreSQL.
type WishlistRepository struct {
	db database.DBTX
}

// NewWishlistRepository creates a new PostgreSQL-backed wishlist repository.
func NewWishlistRepository(db database.DBTX) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Create inserts an empty wishlist. A second wishlist for the same user
// violates the unique owner constraint and yields AlreadyExists.
func (r *WishlistRepository) Create(ctx context.Context, w *domain.Wishlist) (err error) {
	query := `
		INSERT INTO wishlists (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	ctx, end := database.TraceQuery(ctx, "CreateWishlist", query)
	defer func() { end(err) }()

	if _, err = database.Executor(ctx, r.db).Exec(ctx, query, w.ID, w.UserID, w.CreatedAt, w.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("wishlist", "user_id", w.UserID)
		}
		return fmt.Errorf("insert wishlist: %w", err)
	}
	return nil
}

// GetByUserID returns the wishlist header for a user.
func (r *WishlistRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wishlist, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlists w WHERE w.user_id = $1`
	return r.scanWishlist(ctx, "GetWishlist", query, userID)
}

// GetByOwnerEmail returns the wishlist header of the user with email.
func (r *WishlistRepository) GetByOwnerEmail(ctx context.Context, email string) (*domain.Wishlist, error) {
	query := `
		SELECT ` + wishlistColumns + `
		FROM wishlists w
		JOIN users u ON u.id = w.user_id
		WHERE LOWER(u.email) = LOWER($1)`
	return r.scanWishlist(ctx, "GetWishlistByOwnerEmail", query, email)
}

// LockByUserID selects the wishlist row FOR UPDATE. Concurrent mutations of
// the same wishlist queue behind the lock; other wishlists are unaffected.
func (r *WishlistRepository) LockByUserID(ctx context.Context, userID string) (*domain.Wishlist, error) {
	return r.scanWishlist(ctx, "LockWishlist", lockWishlistQuery, userID)
}

// LockHolders locks every wishlist that holds productID, in ID order, and
// returns them with their owners' emails.
func (r *WishlistRepository) LockHolders(ctx context.Context, productID string) (_ []domain.WishlistHolder, err error) {
	ctx, end := database.TraceQuery(ctx, "LockWishlistHolders", lockHoldersQuery)
	defer func() { end(err) }()

	rows, err := database.Executor(ctx, r.db).Query(ctx, lockHoldersQuery, productID)
	if err != nil {
		return nil, fmt.Errorf("lock wishlist holders: %w", err)
	}
	defer rows.Close()

	var holders []domain.WishlistHolder
	for rows.Next() {
		var h domain.WishlistHolder
		if err := rows.Scan(&h.WishlistID, &h.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan wishlist holder: %w", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist holders: %w", err)
	}
	return holders, nil
}

// CategoryClashes lists the members of categoryID that share a wishlist with
// productID.
func (r *WishlistRepository) CategoryClashes(ctx context.Context, productID, categoryID string) (_ []domain.CategoryClash, err error) {
	ctx, end := database.TraceQuery(ctx, "WishlistCategoryClashes", categoryClashesQuery)
	defer func() { end(err) }()

	rows, err := database.Executor(ctx, r.db).Query(ctx, categoryClashesQuery, productID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("find category clashes: %w", err)
	}
	defer rows.Close()

	var clashes []domain.CategoryClash
	for rows.Next() {
		var c domain.CategoryClash
		if err := rows.Scan(&c.WishlistID, &c.ProductID); err != nil {
			return nil, fmt.Errorf("scan category clash: %w", err)
		}
		clashes = append(clashes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category clashes: %w", err)
	}
	return clashes, nil
}

// HolderEmailsByCategory returns the owner emails of wishlists holding any
// product of categoryID.
func (r *WishlistRepository) HolderEmailsByCategory(ctx context.Context, categoryID string) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, "WishlistHolderEmailsByCategory", categoryHolderEmailsQuery)
	defer func() { end(err) }()

	rows, err := database.Executor(ctx, r.db).Query(ctx, categoryHolderEmailsQuery, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list category holders: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan category holder: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category holders: %w", err)
	}
	return emails, nil
}

// ListProducts returns the members in insertion order.
func (r *WishlistRepository) ListProducts(ctx context.Context, wishlistID string) (_ []*domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "ListWishlistProducts", listWishlistProductsQuery)
	defer func() { end(err) }()

	rows, err := database.Executor(ctx, r.db).Query(ctx, listWishlistProductsQuery, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}
	return products, nil
}

// AddProducts inserts the memberships one by one so their positions follow
// the order of productIDs.
func (r *WishlistRepository) AddProducts(ctx context.Context, wishlistID string, productIDs []string) (err error) {
	ctx, end := database.TraceQuery(ctx, "AddWishlistProducts", insertWishlistProductQuery)
	defer func() { end(err) }()

	db := database.Executor(ctx, r.db)
	for _, productID := range productIDs {
		if _, err = db.Exec(ctx, insertWishlistProductQuery, wishlistID, productID); err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NotFound("product", productID)
			}
			return fmt.Errorf("add to wishlist: %w", err)
		}
	}
	return nil
}

// RemoveProduct deletes one membership and reports whether it existed.
func (r *WishlistRepository) RemoveProduct(ctx context.Context, wishlistID, productID string) (_ bool, err error) {
	query := `DELETE FROM wishlist_products WHERE wishlist_id = $1 AND product_id = $2`

	ctx, end := database.TraceQuery(ctx, "RemoveWishlistProduct", query)
	defer func() { end(err) }()

	ct, err := database.Executor(ctx, r.db).Exec(ctx, query, wishlistID, productID)
	if err != nil {
		return false, fmt.Errorf("remove from wishlist: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ClearProducts removes every membership of the wishlist.
func (r *WishlistRepository) ClearProducts(ctx context.Context, wishlistID string) (err error) {
	query := `DELETE FROM wishlist_products WHERE wishlist_id = $1`

	ctx, end := database.TraceQuery(ctx, "ClearWishlist", query)
	defer func() { end(err) }()

	if _, err = database.Executor(ctx, r.db).Exec(ctx, query, wishlistID); err != nil {
		return fmt.Errorf("clear wishlist: %w", err)
	}
	return nil
}

// Touch bumps updated_at.
func (r *WishlistRepository) Touch(ctx context.Context, wishlistID string) error {
	query := `UPDATE wishlists SET updated_at = NOW() WHERE id = $1`

	if _, err := database.Executor(ctx, r.db).Exec(ctx, query, wishlistID); err != nil {
		return fmt.Errorf("touch wishlist: %w", err)
	}
	return nil
}

func (r *WishlistRepository) scanWishlist(ctx context.Context, op, query string, arg any) (_ *domain.Wishlist, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var w domain.Wishlist
	err = database.Executor(ctx, r.db).QueryRow(ctx, query, arg).Scan(
		&w.ID,
		&w.UserID,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan wishlist: %w", err)
	}
	return &w, nil
}
