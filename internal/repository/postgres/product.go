package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

const productSelect = `
		SELECT p.id, p.name, p.price, p.category_id, c.name, p.rank, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product. An unknown category yields NotFound.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, price, category_id, rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		p.ID,
		p.Name,
		p.Price,
		p.CategoryID,
		p.Rank,
		p.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("category", p.CategoryID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getOne(ctx, productSelect+` WHERE p.id = $1`, id)
}

// LockByID returns the product and holds a row lock on it until the
// surrounding transaction ends. Wishlist writers reading it FOR SHARE wait.
func (r *ProductRepository) LockByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getOne(ctx, productSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id)
}

func (r *ProductRepository) getOne(ctx context.Context, query, id string) (*domain.Product, error) {
	p, err := scanProduct(database.Executor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// GetByIDs loads every existing product among ids in one round trip. The
// rows are read FOR SHARE so a concurrent category move waits for the
// caller's transaction, or is seen by it once committed.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	found := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, productSelect+` WHERE p.id = ANY($1::uuid[]) FOR SHARE OF p`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return found, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $1, price = $2, category_id = $3, rank = $4
		WHERE id = $5`

	ct, err := database.Executor(ctx, r.db).Exec(ctx, query, p.Name, p.Price, p.CategoryID, p.Rank, p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("category", p.CategoryID)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// Delete removes a product; wishlist memberships cascade.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := database.Executor(ctx, r.db).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// List returns a filtered, paginated product listing.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", argIndex))
		args = append(args, filter.CategoryID)
		argIndex++
	}

	if filter.PriceGT != nil {
		conditions = append(conditions, fmt.Sprintf("p.price > $%d", argIndex))
		args = append(args, *filter.PriceGT)
		argIndex++
	}

	if filter.PriceLT != nil {
		conditions = append(conditions, fmt.Sprintf("p.price < $%d", argIndex))
		args = append(args, *filter.PriceLT)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total alongside the page in one query.
	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.price, p.category_id, c.name, p.rank, p.created_at,
			   count(*) OVER() AS total_count
		FROM products p
		JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY p.rank, p.created_at, p.id
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	args = append(args, page.Limit(), page.Offset())

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   = []*domain.Product{}
		totalCount int
	)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.CategoryID,
			&p.CategoryName,
			&p.Rank,
			&p.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, totalCount, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.CategoryID,
		&p.CategoryName,
		&p.Rank,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
