package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/pricing"
)

// ProposalStatus is the signing lifecycle state.
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "DRAFT"
	ProposalStatusSent     ProposalStatus = "SENT"
	ProposalStatusViewed   ProposalStatus = "VIEWED"
	ProposalStatusSigned   ProposalStatus = "SIGNED"
	ProposalStatusDeclined ProposalStatus = "DECLINED"
	ProposalStatusExpired  ProposalStatus = "EXPIRED"
)

// Proposal is the immutable, numbered financial document snapshotted from
// an approved draft. Monetary fields never change after creation; only
// lifecycle timestamps, the one-time signature capture, and append-only
// child rows (recipients, events) are written afterwards.
type Proposal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID   uint    `gorm:"index;not null" json:"company_id"`
	Company     Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedByID *uint   `gorm:"index" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"-"`

	// Originating draft, kept for audit. Nullable so deleting old drafts
	// never cascades into financial history.
	ConvertedFromID *uint          `gorm:"index" json:"converted_from_id,omitempty"`
	ConvertedFrom   *ProposalDraft `gorm:"foreignKey:ConvertedFromID" json:"-"`

	Title    string `gorm:"size:200;not null" json:"title"`
	Currency string `gorm:"size:8;not null;default:'USD'" json:"currency"`

	AmountSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_subtotal"`
	AmountTax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_tax"`
	DiscountTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_total"`
	AmountTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_total"`

	DepositType   pricing.DepositType `gorm:"size:10;not null;default:'NONE'" json:"deposit_type"`
	DepositValue  decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"deposit_value"`
	DepositAmount decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"deposit_amount"`
	RemainingDue  decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"remaining_due"`

	Status ProposalStatus `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`

	// Signing link.
	SignToken      string     `gorm:"size:64;uniqueIndex" json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	// Lifecycle stamps.
	SentAt     *time.Time `json:"sent_at,omitempty"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
	DeclinedAt *time.Time `json:"declined_at,omitempty"`

	// Signer identity captured at signature time.
	SignerName  string `gorm:"size:160" json:"signer_name,omitempty"`
	SignerEmail string `gorm:"size:254" json:"signer_email,omitempty"`
	SignerIP    string `gorm:"size:45" json:"-"`

	// Internal countersignature sub-flow.
	CountersignRequired bool       `gorm:"default:false" json:"countersign_required"`
	CountersignedAt     *time.Time `json:"countersigned_at,omitempty"`
	CountersignedByID   *uint      `json:"countersigned_by_id,omitempty"`
	CountersignedBy     *User      `gorm:"foreignKey:CountersignedByID" json:"-"`
	CountersignNotes    string     `gorm:"type:text" json:"countersign_notes,omitempty"`

	LineItems        []ProposalLineItem        `gorm:"foreignKey:ProposalID" json:"line_items,omitempty"`
	AppliedDiscounts []ProposalAppliedDiscount `gorm:"foreignKey:ProposalID" json:"applied_discounts,omitempty"`
	Recipients       []ProposalRecipient       `gorm:"foreignKey:ProposalID" json:"recipients,omitempty"`
	Events           []ProposalEvent           `gorm:"foreignKey:ProposalID" json:"events,omitempty"`
}

// LinkExpired reports whether the signing link has passed its expiry.
// Expiry is data-driven and checked at read time; no timer flips state.
func (p *Proposal) LinkExpired(now time.Time) bool {
	return p.TokenExpiresAt != nil && now.After(*p.TokenExpiresAt)
}

// CountersignDue is true when the client has signed but the required
// internal countersignature has not been recorded yet. Dashboard signal
// only; it gates nothing.
func (p *Proposal) CountersignDue() bool {
	return p.CountersignRequired && p.SignedAt != nil && p.CountersignedAt == nil
}

// IsTerminal reports whether the lifecycle can still advance.
func (p *Proposal) IsTerminal() bool {
	switch p.Status {
	case ProposalStatusSigned, ProposalStatusDeclined, ProposalStatusExpired:
		return true
	}
	return false
}

// ProposalLineItem is the frozen copy of a draft line. The draft math
// (hours, quantity, rates) is kept for transparency; unit_price/subtotal
// mirror line_total so the invoice materializer can copy lines directly,
// treating each one as a single billing unit.
type ProposalLineItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProposalID uint      `gorm:"index;not null" json:"proposal_id"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	SortOrder   int    `gorm:"default:0" json:"sort_order"`
	Name        string `gorm:"size:160;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Hours         decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"hours"`
	Quantity      decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"quantity"`
	JobRateID     uint            `json:"job_rate_id"`
	BaseSettingID uint            `json:"base_setting_id"`
	HourlyRate    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hourly_rate"`
	BaseRate      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_rate"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"line_total"`

	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
}

// ProposalAppliedDiscount is the snapshot of the discount applied at
// conversion time, copied verbatim onto invoices later.
type ProposalAppliedDiscount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProposalID uint      `gorm:"index;not null" json:"proposal_id"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	DiscountCode  string               `gorm:"size:40;not null" json:"discount_code"`
	Name          string               `gorm:"size:120;not null" json:"name"`
	Kind          pricing.DiscountKind `gorm:"size:10;not null" json:"kind"`
	Value         decimal.Decimal      `gorm:"type:decimal(10,2);not null" json:"value"`
	AmountApplied decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0" json:"amount_applied"`
	SortOrder     int                  `gorm:"default:0" json:"sort_order"`
}

// ProposalRecipient is who the proposal was sent to. Unique per
// (proposal, email).
type ProposalRecipient struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProposalID uint      `gorm:"index:idx_proposal_recipient,unique,priority:1;not null" json:"proposal_id"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	Name         string     `gorm:"size:160" json:"name,omitempty"`
	Email        string     `gorm:"size:254;not null;index:idx_proposal_recipient,unique,priority:2" json:"email"`
	IsPrimary    bool       `gorm:"default:true" json:"is_primary"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	LastOpenedAt *time.Time `json:"last_opened_at,omitempty"`
}

// ProposalEventKind labels audit trail entries.
type ProposalEventKind string

const (
	EventCreated       ProposalEventKind = "CREATED"
	EventSent          ProposalEventKind = "SENT"
	EventViewed        ProposalEventKind = "VIEWED"
	EventSigned        ProposalEventKind = "SIGNED"
	EventCountersigned ProposalEventKind = "COUNTERSIGNED"
	EventDeclined      ProposalEventKind = "DECLINED"
	EventUpdated       ProposalEventKind = "UPDATED"
	EventComment       ProposalEventKind = "COMMENT"
)

// ProposalEvent is one append-only audit trail entry. Events are never
// edited or deleted.
type ProposalEvent struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ProposalID uint      `gorm:"index;not null" json:"proposal_id"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	Kind    ProposalEventKind `gorm:"size:20;not null" json:"kind"`
	At      time.Time         `gorm:"autoCreateTime;index" json:"at"`
	ActorID *uint             `json:"actor_id,omitempty"`
	Actor   *User             `gorm:"foreignKey:ActorID" json:"-"`

	IPAddress string `gorm:"size:45" json:"ip_address,omitempty"`
	// Optional structured payload, JSON-encoded.
	Data string `gorm:"type:text" json:"data,omitempty"`
}
