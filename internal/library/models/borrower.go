package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "biblio/pkg/domain-errors"
)

// Borrower is a registered library member.
//
// Invariants:
//   - Name is non-empty
//   - NationalID is non-empty and globally unique (enforced by the store)
//
// The borrower may only be deleted while no open loan references it.
type Borrower struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	NationalID string    `json:"national_id" db:"national_id"`
	Email      string    `json:"email,omitempty" db:"email"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NewBorrower validates input and constructs a borrower.
func NewBorrower(id uuid.UUID, name, nationalID, email string, now time.Time) (*Borrower, error) {
	name = strings.TrimSpace(name)
	nationalID = strings.TrimSpace(nationalID)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if nationalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "national_id is required")
	}
	return &Borrower{
		ID:         id,
		Name:       name,
		NationalID: nationalID,
		Email:      strings.TrimSpace(email),
		CreatedAt:  now,
	}, nil
}
