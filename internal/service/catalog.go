package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CatalogService manages categories and products. Product writes that can
// reach a wishlist lock the product and every wishlist holding it, and drop
// the cached views of those wishlists after commit.
type CatalogService struct {
	tx         Transactor
	categories repository.CategoryRepository
	products   repository.ProductRepository
	wishlists  repository.WishlistRepository
	cache      WishlistCache
	logger     *slog.Logger
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(
	tx Transactor,
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	wishlists repository.WishlistRepository,
	cache WishlistCache,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		tx:         tx,
		categories: categories,
		products:   products,
		wishlists:  wishlists,
		cache:      cache,
		logger:     logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name       string
	Price      decimal.Decimal
	CategoryID string
	Rank       int
}

// --- Categories ---

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	c := &domain.Category{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", c.ID),
	)
	return c, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	// Cached wishlist views carry the category name.
	if s.cache != nil {
		emails, err := s.wishlists.HolderEmailsByCategory(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "listing wishlists to invalidate failed",
				slog.String("category_id", id),
				slog.String("error", err.Error()),
			)
		}
		for _, email := range emails {
			s.invalidate(ctx, email)
		}
	}
	return c, nil
}

// DeleteCategory removes a category. A category that still has products
// cannot be deleted.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "category deleted",
		slog.String("category_id", id),
	)
	return nil
}

// --- Products ---

func (s *CatalogService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	p := &domain.Product{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(input.Name),
		Price:      input.Price,
		CategoryID: input.CategoryID,
		Rank:       input.Rank,
		CreatedAt:  time.Now().UTC(),
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	category, err := s.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}
	p.CategoryName = category.Name

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("category_id", p.CategoryID),
	)
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpdateProduct applies a partial update. Moving a product into a category
// that a wishlist holding it already has a product from is rejected with
// ConstraintViolation.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error) {
	var (
		p       *domain.Product
		holders []domain.WishlistHolder
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.lockProduct(ctx, id)
		if err != nil {
			return err
		}
		previousCategory := p.CategoryID

		update.Apply(p)
		p.Name = strings.TrimSpace(p.Name)
		if err := validateProduct(p); err != nil {
			return err
		}

		if update.CategoryID != nil {
			category, err := s.GetCategory(ctx, p.CategoryID)
			if err != nil {
				return err
			}
			p.CategoryName = category.Name
		}

		holders, err = s.wishlists.LockHolders(ctx, id)
		if err != nil {
			return fmt.Errorf("lock wishlists holding product: %w", err)
		}
		if p.CategoryID != previousCategory && len(holders) > 0 {
			if err := s.checkCategoryMove(ctx, p); err != nil {
				return err
			}
		}

		if err := s.products.Update(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateHolders(ctx, holders)
	return p, nil
}

// DeleteProduct removes a product. Wishlists holding it lose it through the
// database cascade, so their cached views are dropped too.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	var holders []domain.WishlistHolder
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockProduct(ctx, id); err != nil {
			return err
		}

		var err error
		holders, err = s.wishlists.LockHolders(ctx, id)
		if err != nil {
			return fmt.Errorf("lock wishlists holding product: %w", err)
		}

		if err := s.products.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateHolders(ctx, holders)
	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
		slog.Int("wishlists", len(holders)),
	)
	return nil
}

func (s *CatalogService) lockProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.LockByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return p, nil
}

// checkCategoryMove fails when a wishlist holding p already has another
// product from p's new category.
func (s *CatalogService) checkCategoryMove(ctx context.Context, p *domain.Product) error {
	clashes, err := s.wishlists.CategoryClashes(ctx, p.ID, p.CategoryID)
	if err != nil {
		return fmt.Errorf("check wishlist categories: %w", err)
	}
	if len(clashes) == 0 {
		return nil
	}

	first := clashes[0]
	s.logger.WarnContext(ctx, "product move rejected by wishlist category rule",
		slog.String("product_id", p.ID),
		slog.String("category_id", p.CategoryID),
		slog.Int("wishlists", len(clashes)),
	)
	return apperrors.ConstraintViolation(fmt.Sprintf(
		"product %s cannot move to category %s: wishlist %s already holds product %s from it",
		p.ID, p.CategoryID, first.WishlistID, first.ProductID))
}

func (s *CatalogService) invalidateHolders(ctx context.Context, holders []domain.WishlistHolder) {
	if s.cache == nil {
		return
	}
	for _, h := range holders {
		s.invalidate(ctx, h.OwnerEmail)
	}
}

func (s *CatalogService) invalidate(ctx context.Context, email string) {
	if err := s.cache.Invalidate(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "wishlist cache invalidation failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}

// ListProducts returns one page of products. Price bounds are exclusive.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	if filter.PriceGT != nil && filter.PriceLT != nil && !filter.PriceGT.LessThan(*filter.PriceLT) {
		return []*domain.Product{}, 0, nil
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func validateProduct(p *domain.Product) error {
	if p.Name == "" {
		return apperrors.InvalidInput("product name is required")
	}
	if p.Price.IsNegative() {
		return apperrors.InvalidInput("price must not be negative")
	}
	if strings.TrimSpace(p.CategoryID) == "" {
		return apperrors.InvalidInput("category is required")
	}
	return nil
}
