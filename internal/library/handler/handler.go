// Package handler is the thin HTTP layer over the lending service. It
// decodes requests, delegates to the service, and translates coded domain
// errors into distinct client-visible statuses. No business logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"biblio/internal/library/models"
	dErrors "biblio/pkg/domain-errors"
	"biblio/pkg/requestcontext"
)

// Service defines the core operations the boundary exposes.
type Service interface {
	AddItem(ctx context.Context, title, author string, totalCopies, availableCopies int) (*models.CatalogItem, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	ListItems(ctx context.Context) ([]*models.CatalogItem, error)

	AddBorrower(ctx context.Context, name, nationalID, email string) (*models.Borrower, error)
	RemoveBorrower(ctx context.Context, borrowerID uuid.UUID) error
	ListBorrowers(ctx context.Context) ([]*models.Borrower, error)

	OpenLoan(ctx context.Context, itemID, borrowerID uuid.UUID) (*models.Loan, error)
	CloseLoan(ctx context.Context, loanID uuid.UUID) error
	ListOpenLoans(ctx context.Context) ([]*models.OpenLoanView, error)
}

// Handler handles the lending endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the lending routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/items", h.handleAddItem)
		r.Get("/items", h.handleListItems)
		r.Delete("/items/{id}", h.handleRemoveItem)

		r.Post("/borrowers", h.handleAddBorrower)
		r.Get("/borrowers", h.handleListBorrowers)
		r.Delete("/borrowers/{id}", h.handleRemoveBorrower)

		r.Post("/loans", h.handleOpenLoan)
		r.Get("/loans", h.handleListOpenLoans)
		r.Post("/loans/{id}/return", h.handleCloseLoan)
	})
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	item, err := h.service.AddItem(r.Context(), req.Title, req.Author, req.TotalCopies, req.availableOrDefault())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddBorrower(w http.ResponseWriter, r *http.Request) {
	var req addBorrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	borrower, err := h.service.AddBorrower(r.Context(), req.Name, req.NationalID, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, borrower)
}

func (h *Handler) handleListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.service.ListBorrowers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowers)
}

func (h *Handler) handleRemoveBorrower(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveBorrower(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpenLoan(w http.ResponseWriter, r *http.Request) {
	var req openLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeInvalidInput, "item_id must be a valid id"))
		return
	}
	borrowerID, err := uuid.Parse(req.BorrowerID)
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeInvalidInput, "borrower_id must be a valid id"))
		return
	}

	loan, err := h.service.OpenLoan(r.Context(), itemID, borrowerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleCloseLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.CloseLoan(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOpenLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListOpenLoans(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "no such resource"))
		return uuid.Nil, false
	}
	return id, true
}

// fail logs and writes a domain error. Expected business failures log at
// warn; internal and consistency failures log at error and reach the client
// as a generic server error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeInternal, dErrors.CodeInternalConsistency:
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	default:
		h.logger.WarnContext(ctx, "request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"code", string(code),
			"error", err.Error(),
		)
	}
	writeError(w, err)
}
