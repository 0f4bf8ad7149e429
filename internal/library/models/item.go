package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "biblio/pkg/domain-errors"
)

// CatalogItem is a book title with a finite, tracked copy count.
//
// Invariants:
//   - Title is non-empty
//   - 0 <= AvailableCopies <= TotalCopies
//   - AvailableCopies equals TotalCopies minus the count of open loans on
//     this item
//
// AvailableCopies is only ever mutated through the store's reserve/release
// primitives, which run inside the same transactional scope as the loan
// record mutation. The item may only be deleted while no open loan
// references it.
type CatalogItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author,omitempty" db:"author"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NewCatalogItem validates input and constructs a catalog item.
// availableCopies < 0 means "default to totalCopies".
func NewCatalogItem(id uuid.UUID, title, author string, totalCopies, availableCopies int, now time.Time) (*CatalogItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if totalCopies < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total_copies must be at least 1")
	}
	if availableCopies < 0 {
		availableCopies = totalCopies
	}
	if availableCopies > totalCopies {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "available_copies cannot exceed total_copies")
	}
	return &CatalogItem{
		ID:              id,
		Title:           title,
		Author:          strings.TrimSpace(author),
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
		CreatedAt:       now,
	}, nil
}

// ConsistentWith reports whether the derived availability invariant holds
// against the given open-loan count.
func (i *CatalogItem) ConsistentWith(openLoans int) bool {
	return i.AvailableCopies >= 0 &&
		i.AvailableCopies <= i.TotalCopies &&
		i.AvailableCopies == i.TotalCopies-openLoans
}
