package handler

// addItemRequest mirrors the catalog-add payload. AvailableCopies is a
// pointer so "absent" (default to total) and "explicit zero" stay
// distinguishable.
type addItemRequest struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies *int   `json:"available_copies"`
}

func (r addItemRequest) availableOrDefault() int {
	if r.AvailableCopies == nil {
		return -1
	}
	return *r.AvailableCopies
}

type addBorrowerRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Email      string `json:"email"`
}

// openLoanRequest carries only the two references. The due date is always
// computed server-side from the loan timestamp; it is not accepted as input.
type openLoanRequest struct {
	ItemID     string `json:"item_id"`
	BorrowerID string `json:"borrower_id"`
}
