package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/pricing"
)

// ApprovalStatus is the draft workflow state machine field.
type ApprovalStatus string

const (
	ApprovalDraft     ApprovalStatus = "DRAFT"
	ApprovalSubmitted ApprovalStatus = "SUBMITTED"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
	ApprovalConverted ApprovalStatus = "CONVERTED"
)

// ProposalDraft is the mutable, employee-owned pricing worksheet. Totals
// are derived by the pricing engine on every item write and never
// hand-edited. Once approved and converted, the draft is frozen and the
// snapshot lives on as a Proposal.
type ProposalDraft struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID   uint    `gorm:"index;not null" json:"company_id"`
	Company     Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedByID *uint   `gorm:"index" json:"created_by_id,omitempty"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"-"`

	Title    string `gorm:"size:200;not null" json:"title"`
	Currency string `gorm:"size:8;not null;default:'USD'" json:"currency"`

	// Quick contact capture before the company has a formal contact.
	ContactName  string `gorm:"size:160" json:"contact_name,omitempty"`
	ContactEmail string `gorm:"size:254" json:"contact_email,omitempty"`

	// Derived totals.
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountID     *uint           `gorm:"index" json:"discount_id,omitempty"`
	Discount       *Discount       `gorm:"foreignKey:DiscountID" json:"discount,omitempty"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`

	// Deposit configuration and derived amounts.
	DepositType   pricing.DepositType `gorm:"size:10;not null;default:'NONE'" json:"deposit_type"`
	DepositValue  decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"deposit_value"`
	DepositAmount decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"deposit_amount"`
	RemainingDue  decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"remaining_due"`

	// Estimate tiering. When EstimateManual is set the pinned tier is kept
	// and only the low/high bounds refresh.
	EstimateTierID *uint           `gorm:"index" json:"estimate_tier_id,omitempty"`
	EstimateTier   *CostTier       `gorm:"foreignKey:EstimateTierID" json:"estimate_tier,omitempty"`
	EstimateLow    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"estimate_low"`
	EstimateHigh   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"estimate_high"`
	EstimateManual bool            `gorm:"default:false" json:"estimate_manual"`

	// Approval state machine.
	ApprovalStatus ApprovalStatus `gorm:"size:12;not null;default:'DRAFT';index" json:"approval_status"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	ApprovedByID   *uint          `json:"approved_by_id,omitempty"`
	ApprovedBy     *User          `gorm:"foreignKey:ApprovedByID" json:"-"`
	ReviewNotes    string         `gorm:"type:text" json:"review_notes,omitempty"`

	Items []DraftItem `gorm:"foreignKey:DraftID" json:"items,omitempty"`
}

// IsEditable reports whether line items and settings may still change.
// Drafts stay mutable through submission and rejection; approval freezes
// them.
func (d *ProposalDraft) IsEditable() bool {
	return d.ApprovalStatus == ApprovalDraft ||
		d.ApprovalStatus == ApprovalSubmitted ||
		d.ApprovalStatus == ApprovalRejected
}

// CanSubmit reports whether Submit is a legal transition from the current
// state (initial submission or resubmission after rejection).
func (d *ProposalDraft) CanSubmit() bool {
	return d.ApprovalStatus == ApprovalDraft || d.ApprovalStatus == ApprovalRejected
}

// DepositSpec converts the draft's deposit configuration into the pricing
// engine's shape.
func (d *ProposalDraft) DepositSpec() pricing.DepositSpec {
	return pricing.DepositSpec{Type: d.DepositType, Value: d.DepositValue}
}

// DraftItem is a chosen catalog item inside a draft. Name, description,
// and the rate/base-fee values are copied from the catalog at creation so
// later catalog edits never change this line. Only hours and quantity are
// editable.
type DraftItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DraftID uint           `gorm:"index;not null" json:"draft_id"`
	Draft   *ProposalDraft `gorm:"foreignKey:DraftID" json:"-"`

	CatalogItemID uint        `gorm:"index;not null" json:"catalog_item_id"`
	CatalogItem   CatalogItem `gorm:"foreignKey:CatalogItemID" json:"-"`

	// Snapshotted from the catalog at creation.
	Name        string `gorm:"size:160;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	JobRateID     uint            `gorm:"not null" json:"job_rate_id"`
	BaseSettingID uint            `gorm:"not null" json:"base_setting_id"`
	HourlyRate    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hourly_rate"`
	BaseRate      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_rate"`

	// Editable per draft.
	Hours    decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"hours"`
	Quantity decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"quantity"`

	// Derived.
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"line_total"`
	SortOrder int             `gorm:"default:0" json:"sort_order"`
}

// ComputeLineTotal recomputes the derived line total from the snapshotted
// rates and the current hours/quantity.
func (i *DraftItem) ComputeLineTotal() decimal.Decimal {
	return pricing.LineTotal(i.Hours, i.Quantity, i.HourlyRate, i.BaseRate)
}
