package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

type wishlistFixture struct {
	svc       *WishlistService
	txm       *database.TxManager
	pool      pgxmock.PgxPoolIface
	wishlists *mockWishlistRepository
	products  *mockProductRepository
	users     *mockUserRepository
	cache     *mockWishlistCache
	events    *mockPublisher
	metrics   *WishlistMetrics
}

func newWishlistFixture(t *testing.T) *wishlistFixture {
	t.Helper()
	txm, pool := newTestTx(t)
	f := &wishlistFixture{
		txm:       txm,
		pool:      pool,
		wishlists: new(mockWishlistRepository),
		products:  new(mockProductRepository),
		users:     new(mockUserRepository),
		cache:     new(mockWishlistCache),
		events:    new(mockPublisher),
		metrics:   NewWishlistMetrics(nil),
	}
	f.svc = NewWishlistService(txm, f.wishlists, f.products, f.users, f.cache, f.events, f.metrics, logger.Discard())
	return f
}

func (f *wishlistFixture) assertAll(t *testing.T) {
	t.Helper()
	f.wishlists.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.events.AssertExpectations(t)
	assert.NoError(t, f.pool.ExpectationsWereMet())
}

// expectLocked sets up the lock and member load every mutation starts with.
func (f *wishlistFixture) expectLocked(members ...*domain.Product) {
	f.wishlists.On("LockByUserID", mock.Anything, "user-1").Return(testWishlist(), nil).Once()
	if members == nil {
		members = []*domain.Product{}
	}
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return(members, nil).Once()
}

// expectCommitted sets up the side effects of a committed change.
func (f *wishlistFixture) expectCommitted(change domain.WishlistChange) {
	f.wishlists.On("Touch", mock.Anything, "wl-1").Return(nil).Once()
	f.users.On("GetByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
	f.cache.On("Invalidate", mock.Anything, "ann@example.com").Return(nil).Once()
	f.events.On("PublishWishlistUpdated", mock.Anything, change).Return(nil).Once()
}

func testUser() *domain.User {
	return &domain.User{ID: "user-1", Email: "ann@example.com", Role: domain.RoleCustomer, IsActive: true}
}

func testWishlist() *domain.Wishlist {
	now := time.Now().UTC()
	return &domain.Wishlist{ID: "wl-1", UserID: "user-1", CreatedAt: now, UpdatedAt: now}
}

func product(id, categoryID string) *domain.Product {
	return &domain.Product{ID: id, Name: id, Price: decimal.NewFromInt(10), CategoryID: categoryID}
}

const (
	shoeAID   = "0d6f6a52-3c1e-4a8e-9a53-1f0c2b7d8e01"
	shoeBID   = "0d6f6a52-3c1e-4a8e-9a53-1f0c2b7d8e02"
	coatID    = "0d6f6a52-3c1e-4a8e-9a53-1f0c2b7d8e03"
	hatID     = "0d6f6a52-3c1e-4a8e-9a53-1f0c2b7d8e04"
	missingID = "0d6f6a52-3c1e-4a8e-9a53-1f0c2b7d8eff"
)

var (
	shoeA = product(shoeAID, "cat-shoes")
	shoeB = product(shoeBID, "cat-shoes")
	coat  = product(coatID, "cat-coats")
	hat   = product(hatID, "cat-hats")
)

func byID(products ...*domain.Product) map[string]*domain.Product {
	m := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

// ---------------------------------------------------------------------------
// Provision / Get
// ---------------------------------------------------------------------------

func TestWishlistService_Provision(t *testing.T) {
	f := newWishlistFixture(t)

	f.wishlists.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.Wishlist) bool {
		return w.UserID == "user-1" && w.ID != "" && len(w.Products) == 0
	})).Return(nil).Once()

	w, err := f.svc.Provision(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", w.UserID)
	assert.NotNil(t, w.Products)
	f.assertAll(t)
}

func TestWishlistService_Get(t *testing.T) {
	f := newWishlistFixture(t)

	f.wishlists.On("GetByUserID", mock.Anything, "user-1").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{coat, shoeA}, nil).Once()

	w, err := f.svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{coatID, shoeAID}, w.ProductIDs())
	f.assertAll(t)
}

func TestWishlistService_Get_UnknownUser(t *testing.T) {
	f := newWishlistFixture(t)

	f.wishlists.On("GetByUserID", mock.Anything, "ghost").Return(nil, apperrors.ErrNotFound).Once()
	f.users.On("GetByID", mock.Anything, "ghost").Return(nil, apperrors.ErrNotFound).Once()

	_, err := f.svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.assertAll(t)
}

func TestWishlistService_Get_UserWithoutWishlist(t *testing.T) {
	f := newWishlistFixture(t)

	f.wishlists.On("GetByUserID", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound).Once()
	f.users.On("GetByID", mock.Anything, "user-1").Return(testUser(), nil).Once()

	_, err := f.svc.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIntegrityFault))
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	f.assertAll(t)
}

// ---------------------------------------------------------------------------
// AddProducts
// ---------------------------------------------------------------------------

func TestWishlistService_AddProducts_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{"nil list", nil},
		{"empty list", []string{}},
		{"blank id", []string{coatID, "  "}},
		{"not a uuid", []string{"shoe-a"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newWishlistFixture(t)

			_, err := f.svc.AddProducts(context.Background(), "user-1", tc.ids)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
			f.assertAll(t)
		})
	}
}

func TestWishlistService_AddProducts_SkipsTakenCategories(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(shoeA)
	ids := []string{shoeBID, coatID, hatID}
	f.products.On("GetByIDs", mock.Anything, ids).Return(byID(shoeB, coat, hat), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{coatID, hatID}).Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Added:      []string{coatID, hatID},
		Skipped:    []string{shoeBID},
	})

	res, err := f.svc.AddProducts(context.Background(), "user-1", ids)
	require.NoError(t, err)
	assert.Equal(t, []string{shoeAID, coatID, hatID}, res.Wishlist.ProductIDs())
	assert.Equal(t, []string{shoeBID}, res.Skipped)
	assert.NoError(t, res.Wishlist.ValidateAdded(res.Wishlist.ProductIDs()))

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.added))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.skipped))
	f.assertAll(t)
}

func TestWishlistService_AddProducts_EarlierCandidateWins(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked()
	ids := []string{shoeAID, shoeBID}
	f.products.On("GetByIDs", mock.Anything, ids).Return(byID(shoeA, shoeB), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{shoeAID}).Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Added:      []string{shoeAID},
		Skipped:    []string{shoeBID},
	})

	res, err := f.svc.AddProducts(context.Background(), "user-1", ids)
	require.NoError(t, err)
	assert.Equal(t, []string{shoeAID}, res.Wishlist.ProductIDs())
	assert.Equal(t, []string{shoeBID}, res.Skipped)
	f.assertAll(t)
}

func TestWishlistService_AddProducts_AllSkippedChangesNothing(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(shoeA)
	f.products.On("GetByIDs", mock.Anything, []string{shoeAID, shoeBID}).Return(byID(shoeA, shoeB), nil).Once()

	res, err := f.svc.AddProducts(context.Background(), "user-1", []string{shoeAID, shoeBID})
	require.NoError(t, err)
	assert.Equal(t, []string{shoeAID}, res.Wishlist.ProductIDs())
	assert.Equal(t, []string{shoeAID, shoeBID}, res.Skipped)

	f.wishlists.AssertNotCalled(t, "AddProducts", mock.Anything, mock.Anything, mock.Anything)
	f.wishlists.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishWishlistUpdated", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_AddProducts_UnknownProductRollsBack(t *testing.T) {
	f := newWishlistFixture(t)
	expectRollback(f.pool, f.txm)

	ids := []string{coatID, missingID}
	f.products.On("GetByIDs", mock.Anything, ids).Return(byID(coat), nil).Once()

	_, err := f.svc.AddProducts(context.Background(), "user-1", ids)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), missingID)

	f.wishlists.AssertNotCalled(t, "LockByUserID", mock.Anything, mock.Anything)
	f.wishlists.AssertNotCalled(t, "AddProducts", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishWishlistUpdated", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_AddProducts_UppercaseIDsAreCanonicalized(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked()
	f.products.On("GetByIDs", mock.Anything, []string{coatID}).Return(byID(coat), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{coatID}).Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Added:      []string{coatID},
	})

	res, err := f.svc.AddProducts(context.Background(), "user-1", []string{" " + strings.ToUpper(coatID)})
	require.NoError(t, err)
	assert.Equal(t, []string{coatID}, res.Wishlist.ProductIDs())
	f.assertAll(t)
}

func TestWishlistService_AddProducts_StoredCategoryClashDoesNotBlock(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	// Two stored members already share a category; only the new member is checked.
	f.expectLocked(shoeA, shoeB)
	f.products.On("GetByIDs", mock.Anything, []string{coatID}).Return(byID(coat), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{coatID}).Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Added:      []string{coatID},
	})

	res, err := f.svc.AddProducts(context.Background(), "user-1", []string{coatID})
	require.NoError(t, err)
	assert.Equal(t, []string{shoeAID, shoeBID, coatID}, res.Wishlist.ProductIDs())
	f.assertAll(t)
}

func TestWishlistService_AddProducts_CanceledContextRollsBack(t *testing.T) {
	f := newWishlistFixture(t)
	expectRollback(f.pool, f.txm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.expectLocked()
	f.products.On("GetByIDs", mock.Anything, []string{coatID}).Return(byID(coat), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{coatID}).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil).Once()
	f.wishlists.On("Touch", mock.Anything, "wl-1").Return(nil).Once()

	_, err := f.svc.AddProducts(ctx, "user-1", []string{coatID})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	f.events.AssertNotCalled(t, "PublishWishlistUpdated", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_AddProducts_PublishFailureIsNotReturned(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked()
	f.products.On("GetByIDs", mock.Anything, []string{hatID}).Return(byID(hat), nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{hatID}).Return(nil).Once()
	f.wishlists.On("Touch", mock.Anything, "wl-1").Return(nil).Once()
	f.users.On("GetByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
	f.cache.On("Invalidate", mock.Anything, "ann@example.com").Return(errors.New("redis down")).Once()
	f.events.On("PublishWishlistUpdated", mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	res, err := f.svc.AddProducts(context.Background(), "user-1", []string{hatID})
	require.NoError(t, err)
	assert.Equal(t, []string{hatID}, res.Wishlist.ProductIDs())
	assert.Empty(t, res.Skipped)
	assert.NotNil(t, res.Skipped)
	f.assertAll(t)
}

func TestWishlistService_AddProducts_MissingWishlist(t *testing.T) {
	f := newWishlistFixture(t)
	expectRollback(f.pool, f.txm)

	f.products.On("GetByIDs", mock.Anything, []string{coatID}).Return(byID(coat), nil).Once()
	f.wishlists.On("LockByUserID", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound).Once()
	f.users.On("GetByID", mock.Anything, "user-1").Return(testUser(), nil).Once()

	_, err := f.svc.AddProducts(context.Background(), "user-1", []string{coatID})
	assert.True(t, errors.Is(err, apperrors.ErrIntegrityFault))
	f.assertAll(t)
}

// ---------------------------------------------------------------------------
// ReplaceProducts
// ---------------------------------------------------------------------------

func TestWishlistService_ReplaceProducts(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(shoeA, coat)
	ids := []string{hatID, shoeBID, coatID, shoeAID}
	f.products.On("GetByIDs", mock.Anything, ids).Return(byID(hat, shoeB, coat, shoeA), nil).Once()
	f.wishlists.On("ClearProducts", mock.Anything, "wl-1").Return(nil).Once()
	f.wishlists.On("AddProducts", mock.Anything, "wl-1", []string{hatID, shoeBID, coatID}).Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Added:      []string{hatID, shoeBID},
		Removed:    []string{shoeAID},
		Skipped:    []string{shoeAID},
	})

	res, err := f.svc.ReplaceProducts(context.Background(), "user-1", ids)
	require.NoError(t, err)
	assert.Equal(t, []string{hatID, shoeBID, coatID}, res.Wishlist.ProductIDs())
	assert.Equal(t, []string{shoeAID}, res.Skipped)
	f.assertAll(t)
}

func TestWishlistService_ReplaceProducts_EmptyClears(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(coat)
	f.products.On("GetByIDs", mock.Anything, []string{}).Return(map[string]*domain.Product{}, nil).Once()
	f.wishlists.On("ClearProducts", mock.Anything, "wl-1").Return(nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Removed:    []string{coatID},
	})

	res, err := f.svc.ReplaceProducts(context.Background(), "user-1", []string{})
	require.NoError(t, err)
	assert.Empty(t, res.Wishlist.Products)
	f.assertAll(t)
}

// ---------------------------------------------------------------------------
// RemoveProduct
// ---------------------------------------------------------------------------

func TestWishlistService_RemoveProduct_Member(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(coat, hat)
	f.wishlists.On("RemoveProduct", mock.Anything, "wl-1", coatID).Return(true, nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Removed:    []string{coatID},
	})

	require.NoError(t, f.svc.RemoveProduct(context.Background(), "user-1", coatID))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.removed))
	f.assertAll(t)
}

func TestWishlistService_RemoveProduct_NonMemberIsNoop(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(coat)
	f.wishlists.On("RemoveProduct", mock.Anything, "wl-1", hatID).Return(false, nil).Once()

	require.NoError(t, f.svc.RemoveProduct(context.Background(), "user-1", hatID))
	f.wishlists.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishWishlistUpdated", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_RemoveProduct_InvalidID(t *testing.T) {
	for _, id := range []string{" ", "hat"} {
		f := newWishlistFixture(t)

		err := f.svc.RemoveProduct(context.Background(), "user-1", id)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "id %q", id)
		f.assertAll(t)
	}
}

func TestWishlistService_RemoveProduct_UppercaseID(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	f.expectLocked(coat, hat)
	f.wishlists.On("RemoveProduct", mock.Anything, "wl-1", coatID).Return(true, nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Removed:    []string{coatID},
	})

	require.NoError(t, f.svc.RemoveProduct(context.Background(), "user-1", strings.ToUpper(coatID)))
	f.assertAll(t)
}

func TestWishlistService_RemoveProduct_WorksOnStoredCategoryClash(t *testing.T) {
	f := newWishlistFixture(t)
	expectCommit(f.pool, f.txm)

	// A coat that was moved into the shoes category next to shoe A.
	movedCoat := product(coatID, "cat-shoes")
	f.expectLocked(shoeA, movedCoat)
	f.wishlists.On("RemoveProduct", mock.Anything, "wl-1", hatID).Return(false, nil).Once()

	require.NoError(t, f.svc.RemoveProduct(context.Background(), "user-1", hatID))

	f.expectLocked(shoeA, movedCoat)
	f.wishlists.On("RemoveProduct", mock.Anything, "wl-1", coatID).Return(true, nil).Once()
	f.expectCommitted(domain.WishlistChange{
		WishlistID: "wl-1",
		UserID:     "user-1",
		Removed:    []string{coatID},
	})
	expectCommit(f.pool, f.txm)

	require.NoError(t, f.svc.RemoveProduct(context.Background(), "user-1", coatID))
	f.assertAll(t)
}

// ---------------------------------------------------------------------------
// GetByOwnerEmail
// ---------------------------------------------------------------------------

func TestWishlistService_GetByOwnerEmail_CacheHit(t *testing.T) {
	f := newWishlistFixture(t)

	cached := testWishlist()
	cached.Products = []*domain.Product{coat}
	f.cache.On("Get", mock.Anything, "ann@example.com").Return(cached, true, nil).Once()

	w, err := f.svc.GetByOwnerEmail(context.Background(), " Ann@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, []string{coatID}, w.ProductIDs())
	f.wishlists.AssertNotCalled(t, "GetByOwnerEmail", mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_CacheMissFillsCache(t *testing.T) {
	f := newWishlistFixture(t)

	f.cache.On("Get", mock.Anything, "ann@example.com").Return(nil, false, nil).Once()
	f.cache.On("Version", mock.Anything, "ann@example.com").Return(int64(3), nil).Once()
	f.wishlists.On("GetByOwnerEmail", mock.Anything, "ann@example.com").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{hat}, nil).Once()
	f.cache.On("Set", mock.Anything, "ann@example.com", mock.AnythingOfType("*domain.Wishlist"), int64(3)).Return(true, nil).Once()

	w, err := f.svc.GetByOwnerEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{hatID}, w.ProductIDs())
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_ChangedDuringLookupIsServedNotCached(t *testing.T) {
	f := newWishlistFixture(t)

	f.cache.On("Get", mock.Anything, "ann@example.com").Return(nil, false, nil).Once()
	f.cache.On("Version", mock.Anything, "ann@example.com").Return(int64(3), nil).Once()
	f.wishlists.On("GetByOwnerEmail", mock.Anything, "ann@example.com").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{hat}, nil).Once()
	f.cache.On("Set", mock.Anything, "ann@example.com", mock.Anything, int64(3)).Return(false, nil).Once()

	w, err := f.svc.GetByOwnerEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{hatID}, w.ProductIDs())
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_VersionErrorSkipsFill(t *testing.T) {
	f := newWishlistFixture(t)

	f.cache.On("Get", mock.Anything, "ann@example.com").Return(nil, false, nil).Once()
	f.cache.On("Version", mock.Anything, "ann@example.com").Return(int64(0), errors.New("redis down")).Once()
	f.wishlists.On("GetByOwnerEmail", mock.Anything, "ann@example.com").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{}, nil).Once()

	_, err := f.svc.GetByOwnerEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_CacheErrorFallsThrough(t *testing.T) {
	f := newWishlistFixture(t)

	f.cache.On("Get", mock.Anything, "ann@example.com").Return(nil, false, errors.New("redis down")).Once()
	f.cache.On("Version", mock.Anything, "ann@example.com").Return(int64(0), nil).Once()
	f.wishlists.On("GetByOwnerEmail", mock.Anything, "ann@example.com").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{}, nil).Once()
	f.cache.On("Set", mock.Anything, "ann@example.com", mock.Anything, int64(0)).Return(false, errors.New("redis down")).Once()

	w, err := f.svc.GetByOwnerEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Empty(t, w.Products)
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_UnknownEmail(t *testing.T) {
	f := newWishlistFixture(t)

	f.cache.On("Get", mock.Anything, "nobody@example.com").Return(nil, false, nil).Once()
	f.cache.On("Version", mock.Anything, "nobody@example.com").Return(int64(0), nil).Once()
	f.wishlists.On("GetByOwnerEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound).Once()
	f.users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound).Once()

	_, err := f.svc.GetByOwnerEmail(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
	f.assertAll(t)
}

func TestWishlistService_GetByOwnerEmail_NoCache(t *testing.T) {
	f := newWishlistFixture(t)
	svc := NewWishlistService(f.txm, f.wishlists, f.products, f.users, nil, f.events, nil, logger.Discard())

	f.wishlists.On("GetByOwnerEmail", mock.Anything, "ann@example.com").Return(testWishlist(), nil).Once()
	f.wishlists.On("ListProducts", mock.Anything, "wl-1").Return([]*domain.Product{coat}, nil).Once()

	w, err := svc.GetByOwnerEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Len(t, w.Products, 1)
	f.assertAll(t)
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, difference([]string{"a", "b", "c"}, []string{"b"}))
	assert.Nil(t, difference([]string{"a"}, []string{"a"}))
}
