package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/auth"
	"github.com/beedevservices/portal/internal/httpx"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/services"
)

type InvoiceHandler struct {
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// View returns an invoice with lines, discounts, and payments.
func (h *InvoiceHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// FromProposal manually materializes the invoice for a signed proposal
// (normally done at signature time).
func (h *InvoiceHandler) FromProposal(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	inv, err := h.invoices.FromProposal(r.Context(), id, nil, &userID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// RecordPayment applies a received payment and returns the refreshed
// invoice.
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Amount     decimal.Decimal      `json:"amount"`
		Method     models.PaymentMethod `json:"method"`
		Reference  string               `json:"reference"`
		ReceivedAt *time.Time           `json:"received_at"`
		Notes      string               `json:"notes"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	input := services.PaymentInput{
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  in.Reference,
		Notes:      in.Notes,
		RecordedBy: &userID,
	}
	if in.ReceivedAt != nil {
		input.ReceivedAt = *in.ReceivedAt
	}
	inv, err := h.invoices.RecordPayment(r.Context(), id, input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Send moves a DRAFT invoice to SENT.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	inv, err := h.invoices.MarkSent(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Void terminates an invoice.
func (h *InvoiceHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	inv, err := h.invoices.Void(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// PublicView resolves the client's opaque invoice link.
func (h *InvoiceHandler) PublicView(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.ByViewToken(r.Context(), r.PathValue("token"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
