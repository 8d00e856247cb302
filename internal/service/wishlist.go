package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// WishlistService implements the one-product-per-category wishlist.
type WishlistService struct {
	tx        Transactor
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	cache     WishlistCache
	events    event.Publisher
	metrics   *WishlistMetrics
	logger    *slog.Logger
}

// NewWishlistService creates a new wishlist service. cache may be nil.
func NewWishlistService(
	tx Transactor,
	wishlists repository.WishlistRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	cache WishlistCache,
	events event.Publisher,
	metrics *WishlistMetrics,
	logger *slog.Logger,
) *WishlistService {
	if metrics == nil {
		metrics = NewWishlistMetrics(nil)
	}
	return &WishlistService{
		tx:        tx,
		wishlists: wishlists,
		products:  products,
		users:     users,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddResult is the outcome of AddProducts.
type AddResult struct {
	Wishlist *domain.Wishlist
	Skipped  []string
}

// Provision creates the empty wishlist of a new user. It is called inside
// the signup transaction, so ctx normally carries that transaction.
func (s *WishlistService) Provision(ctx context.Context, userID string) (*domain.Wishlist, error) {
	now := time.Now().UTC()
	w := &domain.Wishlist{
		ID:        uuid.New().String(),
		UserID:    userID,
		Products:  []*domain.Product{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.wishlists.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("provision wishlist: %w", err)
	}
	return w, nil
}

// Get returns the user's wishlist with its products in insertion order.
func (s *WishlistService) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	w, err := s.wishlists.GetByUserID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, s.missingWishlist(ctx, userID)
		}
		return nil, fmt.Errorf("get wishlist: %w", err)
	}
	if err := s.loadProducts(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// AddProducts adds candidates in order. A candidate whose category is already
// represented, by a member or by an earlier candidate, is skipped and
// reported rather than failing the call. Unknown product IDs fail the whole
// call.
func (s *WishlistService) AddProducts(ctx context.Context, userID string, productIDs []string) (*AddResult, error) {
	if len(productIDs) == 0 {
		return nil, apperrors.InvalidInput("product_ids must not be empty")
	}
	ids, err := canonicalIDs(productIDs)
	if err != nil {
		return nil, err
	}

	w, change, err := s.mutate(ctx, userID, ids, func(ctx context.Context, w *domain.Wishlist, candidates []*domain.Product) (domain.WishlistChange, error) {
		plan := domain.PlanAdditions(w.Products, candidates)
		if err := s.insert(ctx, w, plan.Accepted); err != nil {
			return domain.WishlistChange{}, err
		}
		return domain.WishlistChange{
			Added:   productIDsOf(plan.Accepted),
			Skipped: plan.Skipped,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &AddResult{Wishlist: w, Skipped: nonNil(change.Skipped)}, nil
}

// ReplaceProducts sets the membership to productIDs, applying the same
// ordered skip policy to an empty wishlist.
func (s *WishlistService) ReplaceProducts(ctx context.Context, userID string, productIDs []string) (*AddResult, error) {
	ids, err := canonicalIDs(productIDs)
	if err != nil {
		return nil, err
	}

	w, change, err := s.mutate(ctx, userID, ids, func(ctx context.Context, w *domain.Wishlist, candidates []*domain.Product) (domain.WishlistChange, error) {
		previous := w.ProductIDs()
		if err := s.wishlists.ClearProducts(ctx, w.ID); err != nil {
			return domain.WishlistChange{}, fmt.Errorf("clear wishlist: %w", err)
		}
		w.Products = []*domain.Product{}

		plan := domain.PlanAdditions(nil, candidates)
		if err := s.insert(ctx, w, plan.Accepted); err != nil {
			return domain.WishlistChange{}, err
		}

		current := w.ProductIDs()
		return domain.WishlistChange{
			Added:   difference(current, previous),
			Removed: difference(previous, current),
			Skipped: plan.Skipped,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &AddResult{Wishlist: w, Skipped: nonNil(change.Skipped)}, nil
}

// RemoveProduct removes productID from the wishlist. Removing a product that
// is not a member succeeds without changing anything.
func (s *WishlistService) RemoveProduct(ctx context.Context, userID, productID string) error {
	parsed, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return apperrors.InvalidInput("product id must be a valid UUID")
	}
	productID = parsed.String()

	_, _, err = s.mutate(ctx, userID, nil, func(ctx context.Context, w *domain.Wishlist, _ []*domain.Product) (domain.WishlistChange, error) {
		removed, err := s.wishlists.RemoveProduct(ctx, w.ID, productID)
		if err != nil {
			return domain.WishlistChange{}, fmt.Errorf("remove wishlist product: %w", err)
		}
		if !removed {
			return domain.WishlistChange{}, nil
		}

		kept := make([]*domain.Product, 0, len(w.Products))
		for _, p := range w.Products {
			if p.ID != productID {
				kept = append(kept, p)
			}
		}
		w.Products = kept
		return domain.WishlistChange{Removed: []string{productID}}, nil
	})
	return err
}

// GetByOwnerEmail returns the wishlist of the user with email. It is served
// from the cache when possible.
func (s *WishlistService) GetByOwnerEmail(ctx context.Context, email string) (*domain.Wishlist, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}

	var (
		version int64
		fill    bool
	)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, email)
		if err != nil {
			s.logger.WarnContext(ctx, "wishlist cache read failed",
				slog.String("error", err.Error()),
			)
		} else if ok {
			return cached, nil
		}

		// The version is read before the database so a change committed
		// during the lookup keeps this view out of the cache.
		version, err = s.cache.Version(ctx, email)
		if err != nil {
			s.logger.WarnContext(ctx, "wishlist cache version read failed",
				slog.String("error", err.Error()),
			)
		}
		fill = err == nil
	}

	w, err := s.wishlists.GetByOwnerEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("get wishlist by email: %w", err)
		}
		user, uerr := s.users.GetByEmail(ctx, email)
		if uerr != nil {
			if isNotFound(uerr) {
				return nil, apperrors.NotFoundBy("user", "email", email)
			}
			return nil, fmt.Errorf("get user by email: %w", uerr)
		}
		return nil, s.integrityFault(ctx, user.ID)
	}

	if err := s.loadProducts(ctx, w); err != nil {
		return nil, err
	}

	if fill {
		stored, err := s.cache.Set(ctx, email, w, version)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "wishlist cache write failed",
				slog.String("wishlist_id", w.ID),
				slog.String("error", err.Error()),
			)
		case !stored:
			s.logger.DebugContext(ctx, "wishlist changed during lookup, view not cached",
				slog.String("wishlist_id", w.ID),
			)
		}
	}
	return w, nil
}

// mutate runs fn against the locked wishlist inside one transaction. Non-nil
// candidateIDs are loaded and share-locked before the wishlist row: product
// locks always come first. Only the products fn added are validated before
// commit; side effects run only after a successful commit.
func (s *WishlistService) mutate(
	ctx context.Context,
	userID string,
	candidateIDs []string,
	fn func(ctx context.Context, w *domain.Wishlist, candidates []*domain.Product) (domain.WishlistChange, error),
) (*domain.Wishlist, domain.WishlistChange, error) {
	var (
		w      *domain.Wishlist
		change domain.WishlistChange
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var candidates []*domain.Product
		if candidateIDs != nil {
			var err error
			if candidates, err = s.resolveCandidates(ctx, candidateIDs); err != nil {
				return err
			}
		}

		locked, err := s.wishlists.LockByUserID(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return s.missingWishlist(ctx, userID)
			}
			return fmt.Errorf("lock wishlist: %w", err)
		}
		if err := s.loadProducts(ctx, locked); err != nil {
			return err
		}

		c, err := fn(ctx, locked, candidates)
		if err != nil {
			return err
		}
		if err := locked.ValidateAdded(c.Added); err != nil {
			s.logger.ErrorContext(ctx, "wishlist would break category rule",
				slog.String("wishlist_id", locked.ID),
				slog.String("error", err.Error()),
			)
			return err
		}

		c.WishlistID = locked.ID
		c.UserID = userID
		if !c.Empty() {
			if err := s.wishlists.Touch(ctx, locked.ID); err != nil {
				return err
			}
		}
		w, change = locked, c
		return nil
	})
	if err != nil {
		return nil, domain.WishlistChange{}, err
	}

	s.afterCommit(ctx, change)
	return w, change, nil
}

func (s *WishlistService) afterCommit(ctx context.Context, change domain.WishlistChange) {
	s.metrics.record(len(change.Added), len(change.Skipped), len(change.Removed))
	if change.Empty() {
		return
	}

	s.invalidate(ctx, change.UserID)

	if err := s.events.PublishWishlistUpdated(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wishlist.updated event",
			slog.String("wishlist_id", change.WishlistID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "wishlist updated",
		slog.String("wishlist_id", change.WishlistID),
		slog.Int("added", len(change.Added)),
		slog.Int("removed", len(change.Removed)),
		slog.Int("skipped", len(change.Skipped)),
	)
}

func (s *WishlistService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		err = s.cache.Invalidate(ctx, user.Email)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "wishlist cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WishlistService) loadProducts(ctx context.Context, w *domain.Wishlist) error {
	products, err := s.wishlists.ListProducts(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("list wishlist products: %w", err)
	}
	w.Products = products
	return nil
}

// resolveCandidates loads the products in request order. Any unknown ID fails
// the call.
func (s *WishlistService) resolveCandidates(ctx context.Context, ids []string) ([]*domain.Product, error) {
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate products: %w", err)
	}

	candidates := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			return nil, apperrors.NotFound("product", id)
		}
		candidates = append(candidates, p)
	}
	return candidates, nil
}

func (s *WishlistService) insert(ctx context.Context, w *domain.Wishlist, accepted []*domain.Product) error {
	if len(accepted) == 0 {
		return nil
	}
	if err := s.wishlists.AddProducts(ctx, w.ID, productIDsOf(accepted)); err != nil {
		return fmt.Errorf("add wishlist products: %w", err)
	}
	w.Products = append(w.Products, accepted...)
	return nil
}

// missingWishlist tells an unknown user apart from a user whose wishlist was
// never provisioned, which breaks the one-wishlist-per-user rule.
func (s *WishlistService) missingWishlist(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("get wishlist owner: %w", err)
	}
	return s.integrityFault(ctx, userID)
}

func (s *WishlistService) integrityFault(ctx context.Context, userID string) error {
	s.logger.ErrorContext(ctx, "user has no wishlist",
		slog.String("user_id", userID),
	)
	return apperrors.IntegrityFault("user " + userID + " has no wishlist")
}

// canonicalIDs parses every product ID and returns them in the lowercase
// hyphenated form the database reports, so lookups by ID line up.
func canonicalIDs(ids []string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product_ids[%d] must be a valid UUID", i))
		}
		out[i] = parsed.String()
	}
	return out, nil
}

func productIDsOf(products []*domain.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// difference returns the elements of a not present in b, keeping a's order.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
