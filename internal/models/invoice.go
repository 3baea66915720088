package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/pricing"
)

// InvoiceStatus represents the billing status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice is the billable artifact materialized from a signed proposal.
// Line items and discounts are value copies; the unique index on
// ProposalID is the data-layer guarantee of at most one invoice per
// proposal.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID  uint      `gorm:"index;not null" json:"company_id"`
	Company    Company   `gorm:"foreignKey:CompanyID" json:"-"`
	ProposalID *uint     `gorm:"uniqueIndex" json:"proposal_id,omitempty"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	// Client user once an account exists; the pre-account contact row
	// otherwise.
	CustomerUserID    *uint           `gorm:"index" json:"customer_user_id,omitempty"`
	CustomerUser      *User           `gorm:"foreignKey:CustomerUserID" json:"-"`
	CustomerContactID *uint           `json:"customer_contact_id,omitempty"`
	CustomerContact   *CompanyContact `gorm:"foreignKey:CustomerContactID" json:"-"`

	Number    string     `gorm:"size:40;uniqueIndex;not null" json:"number"`
	Currency  string     `gorm:"size:8;not null;default:'USD'" json:"currency"`
	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_total"`
	TaxTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_total"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`

	// Deposit snapshot from the proposal.
	MinimumDue decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_due"`

	AmountPaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	Status     InvoiceStatus   `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`

	// Opaque token for the public client invoice view.
	ViewToken string `gorm:"size:64;uniqueIndex" json:"-"`

	CreatedByID *uint `json:"created_by_id,omitempty"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"-"`

	LineItems        []InvoiceLineItem        `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
	AppliedDiscounts []InvoiceAppliedDiscount `gorm:"foreignKey:InvoiceID" json:"applied_discounts,omitempty"`
	Payments         []Payment                `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// BalanceDue is total minus what has been paid so far.
func (i *Invoice) BalanceDue() decimal.Decimal {
	return pricing.Round2(i.Total.Sub(i.AmountPaid))
}

// RecalcTotals rederives subtotal/discount/total from the loaded line
// items and applied discounts. Tax is a pass-through amount set at
// creation.
func (i *Invoice) RecalcTotals() {
	sub := pricing.Zero2()
	for _, li := range i.LineItems {
		sub = sub.Add(pricing.Round2(li.Subtotal))
	}
	disc := pricing.Zero2()
	for _, ad := range i.AppliedDiscounts {
		disc = disc.Add(pricing.Round2(ad.AmountApplied))
	}
	i.Subtotal = pricing.Round2(sub)
	i.DiscountTotal = pricing.Round2(disc)
	i.Total = pricing.Round2(i.Subtotal.Sub(i.DiscountTotal)).Add(pricing.Round2(i.TaxTotal))
}

// RefreshStatusFromPayments recomputes amount_paid from the loaded
// payments and rederives status. A DRAFT invoice stays DRAFT; otherwise
// the status follows the balance: PAID when nothing is due, PARTIAL when
// something has been paid, SENT when untouched.
func (i *Invoice) RefreshStatusFromPayments() {
	paid := pricing.Zero2()
	for _, p := range i.Payments {
		paid = paid.Add(pricing.Round2(p.Amount))
	}
	i.AmountPaid = pricing.Round2(paid)
	if i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusVoid {
		return
	}
	switch {
	case i.BalanceDue().LessThanOrEqual(decimal.Zero):
		i.Status = InvoiceStatusPaid
	case i.AmountPaid.GreaterThan(decimal.Zero):
		i.Status = InvoiceStatusPartial
	default:
		i.Status = InvoiceStatusSent
	}
}

// NewInvoiceNumber generates a unique invoice number.
// Format: INV-YYYYMMDD-XXXXXXXX (date plus an uppercase uuid fragment).
func NewInvoiceNumber(now time.Time) string {
	frag := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), frag)
}

// InvoiceLineItem is a value copy of a proposal line.
type InvoiceLineItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	SortOrder   int             `gorm:"default:0" json:"sort_order"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
}

// InvoiceAppliedDiscount is a value copy of a proposal discount snapshot.
type InvoiceAppliedDiscount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	DiscountCode  string               `gorm:"size:40;not null" json:"discount_code"`
	Name          string               `gorm:"size:120;not null" json:"name"`
	Kind          pricing.DiscountKind `gorm:"size:10;not null" json:"kind"`
	Value         decimal.Decimal      `gorm:"type:decimal(10,2);not null" json:"value"`
	AmountApplied decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0" json:"amount_applied"`
	SortOrder     int                  `gorm:"default:0" json:"sort_order"`
}

// PaymentMethod identifies how a payment arrived.
type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "CARD"
	PaymentACH   PaymentMethod = "ACH"
	PaymentCheck PaymentMethod = "CHECK"
	PaymentCash  PaymentMethod = "CASH"
	PaymentOther PaymentMethod = "OTHER"
)

// Payment is money received against an invoice. Saving one always
// triggers a synchronous refresh of the invoice's amount_paid and status.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method    PaymentMethod   `gorm:"size:10;not null;default:'CARD'" json:"method"`
	Reference string          `gorm:"size:120" json:"reference,omitempty"`

	PayerUserID *uint `json:"payer_user_id,omitempty"`
	PayerUser   *User `gorm:"foreignKey:PayerUserID" json:"-"`

	ReceivedAt  time.Time `gorm:"not null" json:"received_at"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedByID *uint     `json:"created_by_id,omitempty"`
}
