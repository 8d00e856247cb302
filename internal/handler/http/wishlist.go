package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	service WishlistService
	logger  *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(svc WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// AddProductsRequest lists candidates in priority order.
type AddProductsRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,uuid"`
}

// ReplaceProductsRequest is the full desired membership. An empty list
// clears the wishlist.
type ReplaceProductsRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,dive,uuid"`
}

// --- Response types ---

// WishlistChangeResponse is the wishlist after a write, plus the candidates
// skipped because their category was already taken.
type WishlistChangeResponse struct {
	Wishlist *domain.Wishlist `json:"wishlist"`
	Skipped  []string         `json:"skipped"`
}

// PublicWishlistResponse is the owner-anonymous view served by email lookup.
type PublicWishlistResponse struct {
	Products []*domain.Product `json:"products"`
}

// --- Handlers ---

// Get handles GET /api/v1/wishlist
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r, h.logger)
	if !ok {
		return
	}

	wishlist, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, wishlist)
}

// AddProducts handles POST /api/v1/wishlist/products
func (h *WishlistHandler) AddProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r, h.logger)
	if !ok {
		return
	}

	var req AddProductsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	result, err := h.service.AddProducts(r.Context(), userID, req.ProductIDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, WishlistChangeResponse{Wishlist: result.Wishlist, Skipped: result.Skipped})
}

// ReplaceProducts handles PUT /api/v1/wishlist
func (h *WishlistHandler) ReplaceProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r, h.logger)
	if !ok {
		return
	}

	var req ReplaceProductsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	result, err := h.service.ReplaceProducts(r.Context(), userID, req.ProductIDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, WishlistChangeResponse{Wishlist: result.Wishlist, Skipped: result.Skipped})
}

// RemoveProduct handles DELETE /api/v1/wishlist/products/{productId}.
// Removing a product that is not a member also returns 204.
func (h *WishlistHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(w, r, h.logger)
	if !ok {
		return
	}

	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	if err := h.service.RemoveProduct(r.Context(), userID, productID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteStatus(w, http.StatusNoContent)
}

// GetByOwnerEmail handles GET /api/v1/wishlist/by-email/{email}
func (h *WishlistHandler) GetByOwnerEmail(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || !validator.IsEmail(email) {
		httputil.WriteError(w, r, apperrors.InvalidInput("enter a valid email address"), h.logger)
		return
	}

	wishlist, err := h.service.GetByOwnerEmail(r.Context(), email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products := wishlist.Products
	if products == nil {
		products = []*domain.Product{}
	}
	httputil.WriteData(w, http.StatusOK, PublicWishlistResponse{Products: products})
}
