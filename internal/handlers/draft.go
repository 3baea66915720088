package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/auth"
	"github.com/beedevservices/portal/internal/httpx"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/pricing"
	"github.com/beedevservices/portal/internal/services"
)

type DraftHandler struct {
	drafts *services.DraftService
}

func NewDraftHandler(drafts *services.DraftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// Create opens a new pricing draft.
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var in struct {
		CompanyID    uint   `json:"company_id"`
		Title        string `json:"title"`
		Currency     string `json:"currency"`
		ContactName  string `json:"contact_name"`
		ContactEmail string `json:"contact_email"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.Create(r.Context(), userID, services.DraftInput{
		CompanyID:    in.CompanyID,
		Title:        in.Title,
		Currency:     in.Currency,
		ContactName:  in.ContactName,
		ContactEmail: in.ContactEmail,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, draft)
}

// View returns a draft with lines and totals.
func (h *DraftHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	draft, err := h.drafts.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// AddItem appends a catalog line to the draft.
func (h *DraftHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		CatalogItemID uint             `json:"catalog_item_id"`
		Hours         *decimal.Decimal `json:"hours"`
		Quantity      *decimal.Decimal `json:"quantity"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.AddItem(r.Context(), id, in.CatalogItemID, in.Hours, in.Quantity)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// UpdateItem changes a line's hours/quantity.
func (h *DraftHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		ItemID   uint            `json:"item_id"`
		Hours    decimal.Decimal `json:"hours"`
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.UpdateItem(r.Context(), id, in.ItemID, in.Hours, in.Quantity)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// RemoveItem deletes a line.
func (h *DraftHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		ItemID uint `json:"item_id"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.RemoveItem(r.Context(), id, in.ItemID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// SetDiscount applies or clears the draft discount.
func (h *DraftHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		DiscountID *uint `json:"discount_id"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.SetDiscount(r.Context(), id, in.DiscountID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// SetDeposit changes the deposit configuration.
func (h *DraftHandler) SetDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		DepositType  pricing.DepositType `json:"deposit_type"`
		DepositValue decimal.Decimal     `json:"deposit_value"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.SetDeposit(r.Context(), id, in.DepositType, in.DepositValue)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// SetTax sets the flat tax pass-through amount.
func (h *DraftHandler) SetTax(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		TaxAmount decimal.Decimal `json:"tax_amount"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.SetTax(r.Context(), id, in.TaxAmount)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// PinEstimate pins (or unpins) the estimate tier.
func (h *DraftHandler) PinEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		TierID *uint `json:"tier_id"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := h.drafts.PinEstimateTier(r.Context(), id, in.TierID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// Submit moves the draft into review.
func (h *DraftHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	draft, err := h.drafts.Submit(r.Context(), userID, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// Approve accepts a submitted draft.
func (h *DraftHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.drafts.Approve)
}

// Reject sends a submitted draft back with notes.
func (h *DraftHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.drafts.Reject)
}

func (h *DraftHandler) review(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, draftID uint, notes string) (*models.ProposalDraft, error)) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	draft, err := op(r.Context(), userID, id, in.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

// Convert snapshots an approved draft into a proposal.
func (h *DraftHandler) Convert(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	proposal, err := h.drafts.ConvertToProposal(r.Context(), userID, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, proposal)
}
