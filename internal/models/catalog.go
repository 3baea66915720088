package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/pricing"
)

// Catalog reference data: hourly job rates, flat base fees, discounts,
// cost tiers, and the catalog items that bundle them. Catalog rows are
// mutable reference data; draft and proposal lines copy their values at
// creation time, so editing the catalog never rewrites history.

// JobRate is a base hourly rate by job/role (e.g. dev, design, pm).
type JobRate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code       string          `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Name       string          `gorm:"size:120;not null" json:"name"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hourly_rate"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	SortOrder int  `gorm:"default:0" json:"sort_order"`
}

// BaseSetting is a flat base-fee addon applied per line item.
type BaseSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code        string          `gorm:"size:60;uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"size:160;not null" json:"name"`
	BaseRate    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"base_rate"`
	Description string          `gorm:"type:text" json:"description,omitempty"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	SortOrder int  `gorm:"default:0" json:"sort_order"`
}

// Discount is a reusable percent or fixed reduction, optionally limited to
// a validity window.
type Discount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code  string               `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Name  string               `gorm:"size:120;not null" json:"name"`
	Kind  pricing.DiscountKind `gorm:"size:10;not null;default:'PERCENT'" json:"kind"`
	Value decimal.Decimal      `gorm:"type:decimal(10,2);not null" json:"value"`

	IsActive   bool       `gorm:"default:true" json:"is_active"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// ActiveAt reports whether the discount applies at the given time,
// honoring the active flag and the optional validity window.
func (d *Discount) ActiveAt(t time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.ValidFrom != nil && t.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && t.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Spec converts the discount into the pricing engine's shape.
func (d *Discount) Spec(at time.Time) *pricing.DiscountSpec {
	if d == nil {
		return nil
	}
	return &pricing.DiscountSpec{Kind: d.Kind, Value: d.Value, Active: d.ActiveAt(at)}
}

// CostTier buckets a total into a labeled price bracket, used for coarse
// walkaway estimates. Bounds are inclusive; a nil MaxTotal means unbounded.
type CostTier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code     string           `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Label    string           `gorm:"size:80;not null" json:"label"`
	MinTotal decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"min_total"`
	MaxTotal *decimal.Decimal `gorm:"type:decimal(12,2)" json:"max_total,omitempty"`
	Notes    string           `gorm:"type:text" json:"notes,omitempty"`

	SortOrder int  `gorm:"default:0" json:"sort_order"`
	IsActive  bool `gorm:"default:true" json:"is_active"`
}

// Validate checks the bound ordering invariant.
func (t *CostTier) Validate() error {
	if t.MaxTotal != nil && !t.MaxTotal.GreaterThan(t.MinTotal) {
		return apperr.Validation("invalid cost tier", "max_total", "must_exceed_min_total")
	}
	return nil
}

// Contains reports whether amount falls inside the tier's inclusive
// [min, max] interval.
func (t *CostTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.MinTotal) {
		return false
	}
	if t.MaxTotal != nil && amount.GreaterThan(*t.MaxTotal) {
		return false
	}
	return true
}

// CatalogItem is one pickable preset bundling a job rate and a base fee
// with suggested default hours and quantity.
type CatalogItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code        string `gorm:"size:80;uniqueIndex;not null" json:"code"`
	Name        string `gorm:"size:160;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	JobRateID     uint        `gorm:"index;not null" json:"job_rate_id"`
	JobRate       JobRate     `gorm:"foreignKey:JobRateID" json:"job_rate,omitempty"`
	BaseSettingID uint        `gorm:"index;not null" json:"base_setting_id"`
	BaseSetting   BaseSetting `gorm:"foreignKey:BaseSettingID" json:"base_setting,omitempty"`

	DefaultHours    decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"default_hours"`
	DefaultQuantity decimal.Decimal `gorm:"type:decimal(8,2);not null;default:1" json:"default_quantity"`

	IsActive  bool   `gorm:"default:true" json:"is_active"`
	Tags      string `gorm:"size:200" json:"tags,omitempty"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`
}
