package domain

import (
	"fmt"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Wishlist is a user's saved products. A user owns exactly one wishlist,
// created empty at signup, and no two of its products share a category.
type Wishlist struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Products  []*Product `json:"products"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ValidateAdded checks the one-product-per-category rule for the members
// listed in added only. A clash between two older members does not fail it,
// so a wishlist that holds one can still be edited.
func (w *Wishlist) ValidateAdded(added []string) error {
	if len(added) == 0 {
		return nil
	}
	isAdded := make(map[string]struct{}, len(added))
	for _, id := range added {
		isAdded[id] = struct{}{}
	}

	byCategory := make(map[string][]string, len(w.Products))
	seenProduct := make(map[string]int, len(w.Products))
	for _, p := range w.Products {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p.ID)
		seenProduct[p.ID]++
	}

	for _, p := range w.Products {
		if _, ok := isAdded[p.ID]; !ok {
			continue
		}
		if seenProduct[p.ID] > 1 {
			return apperrors.ConstraintViolation(fmt.Sprintf("product %s appears twice in the wishlist", p.ID))
		}
		for _, other := range byCategory[p.CategoryID] {
			if other != p.ID {
				return apperrors.ConstraintViolation(fmt.Sprintf(
					"you can only add one product from each category to the wishlist: %s and %s share category %s",
					other, p.ID, p.CategoryID))
			}
		}
	}
	return nil
}

// Contains reports whether productID is a member.
func (w *Wishlist) Contains(productID string) bool {
	for _, p := range w.Products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

// ProductIDs returns member IDs in insertion order.
func (w *Wishlist) ProductIDs() []string {
	ids := make([]string, len(w.Products))
	for i, p := range w.Products {
		ids[i] = p.ID
	}
	return ids
}

// AdditionPlan is the outcome of PlanAdditions.
type AdditionPlan struct {
	Accepted []*Product
	Skipped  []string
}

// PlanAdditions decides which candidates may join a wishlist whose current
// members are given. Candidates are considered in order; one whose category
// is already represented, by a member or by an earlier accepted candidate,
// is skipped. A candidate that is already a member is skipped the same way.
func PlanAdditions(members, candidates []*Product) AdditionPlan {
	taken := make(map[string]struct{}, len(members)+len(candidates))
	for _, m := range members {
		taken[m.CategoryID] = struct{}{}
	}

	var plan AdditionPlan
	for _, c := range candidates {
		if _, ok := taken[c.CategoryID]; ok {
			plan.Skipped = append(plan.Skipped, c.ID)
			continue
		}
		taken[c.CategoryID] = struct{}{}
		plan.Accepted = append(plan.Accepted, c)
	}
	return plan
}

// WishlistHolder is a wishlist that holds a given product, with the email of
// its owner.
type WishlistHolder struct {
	WishlistID string
	OwnerEmail string
}

// CategoryClash is a wishlist member that already occupies a category.
type CategoryClash struct {
	WishlistID string
	ProductID  string
}

// WishlistChange describes a committed wishlist mutation.
type WishlistChange struct {
	WishlistID string   `json:"wishlist_id"`
	UserID     string   `json:"user_id"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	Skipped    []string `json:"skipped"`
}

// Empty reports whether the mutation changed nothing.
func (c WishlistChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}
