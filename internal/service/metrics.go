package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WishlistMetrics counts committed wishlist changes.
type WishlistMetrics struct {
	added   prometheus.Counter
	skipped prometheus.Counter
	removed prometheus.Counter
}

// NewWishlistMetrics registers the wishlist counters with reg. A nil reg
// yields working but unregistered counters.
func NewWishlistMetrics(reg prometheus.Registerer) *WishlistMetrics {
	factory := promauto.With(reg)
	return &WishlistMetrics{
		added: factory.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_products_added_total",
			Help: "Products added to wishlists.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_candidates_skipped_total",
			Help: "Candidates skipped because their category was already represented.",
		}),
		removed: factory.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_products_removed_total",
			Help: "Products removed from wishlists.",
		}),
	}
}

func (m *WishlistMetrics) record(added, skipped, removed int) {
	m.added.Add(float64(added))
	m.skipped.Add(float64(skipped))
	m.removed.Add(float64(removed))
}
