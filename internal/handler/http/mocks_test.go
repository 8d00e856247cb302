package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Register(ctx context.Context, input service.RegisterInput) (*domain.User, *domain.TokenPair, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Get(1).(*domain.TokenPair), args.Error(2)
}

func (m *mockAccountService) Login(ctx context.Context, input service.LoginInput) (*domain.User, *domain.TokenPair, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Get(1).(*domain.TokenPair), args.Error(2)
}

func (m *mockAccountService) Logout(ctx context.Context, userID, refreshToken string) error {
	args := m.Called(ctx, userID, refreshToken)
	return args.Error(0)
}

func (m *mockAccountService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenPair), args.Error(1)
}

func (m *mockAccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockAccountService) ConfirmPasswordReset(ctx context.Context, input service.ConfirmResetInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *mockAccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockCatalogService struct {
	mock.Mock
}

func (m *mockCatalogService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalogService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Category), args.Error(1)
}

func (m *mockCatalogService) UpdateCategory(ctx context.Context, id, name string) (*domain.Category, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalogService) DeleteCategory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCatalogService) CreateProduct(ctx context.Context, input service.CreateProductInput) (*domain.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogService) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogService) DeleteProduct(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Product), args.Int(1), args.Error(2)
}

type mockWishlistService struct {
	mock.Mock
}

func (m *mockWishlistService) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wishlist), args.Error(1)
}

func (m *mockWishlistService) AddProducts(ctx context.Context, userID string, productIDs []string) (*service.AddResult, error) {
	args := m.Called(ctx, userID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AddResult), args.Error(1)
}

func (m *mockWishlistService) ReplaceProducts(ctx context.Context, userID string, productIDs []string) (*service.AddResult, error) {
	args := m.Called(ctx, userID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AddResult), args.Error(1)
}

func (m *mockWishlistService) RemoveProduct(ctx context.Context, userID, productID string) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

func (m *mockWishlistService) GetByOwnerEmail(ctx context.Context, email string) (*domain.Wishlist, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wishlist), args.Error(1)
}

// ============================================================================
// Test Helpers
// ============================================================================

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
)

// testValidator accepts two fixed tokens: one customer, one admin.
func testValidator(token string) (*middleware.Claims, error) {
	switch token {
	case customerToken:
		return &middleware.Claims{UserID: "user-1", Email: "ann@example.com", Role: domain.RoleCustomer}, nil
	case adminToken:
		return &middleware.Claims{UserID: "admin-1", Email: "root@example.com", Role: domain.RoleAdmin}, nil
	default:
		return nil, errors.New("invalid token")
	}
}

type routerFixture struct {
	handler   http.Handler
	accounts  *mockAccountService
	catalog   *mockCatalogService
	wishlists *mockWishlistService
}

func newRouterFixture(t *testing.T, opts ...func(*RouterConfig)) *routerFixture {
	t.Helper()
	cfg := RouterConfig{
		ServiceName:          "storefront-test",
		CORS:                 middleware.DefaultCORSConfig("*"),
		PublicWishlistLookup: true,
		CatalogCacheMaxAge:   30,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &routerFixture{
		accounts:  new(mockAccountService),
		catalog:   new(mockCatalogService),
		wishlists: new(mockWishlistService),
	}
	f.handler = NewRouter(f.accounts, f.catalog, f.wishlists, testValidator, health.NewHandler(), cfg, logger.Discard())
	t.Cleanup(func() {
		f.accounts.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
		f.wishlists.AssertExpectations(t)
	})
	return f
}

// do sends a request through the router. body is JSON-encoded unless nil.
func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// doRaw sends body as-is with the given Content-Type.
func (f *routerFixture) doRaw(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}
