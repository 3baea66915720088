package models

import "time"

// ProjectStatus tracks overall project health.
type ProjectStatus string

const (
	ProjectPlanning ProjectStatus = "PLANNING"
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectOnHold   ProjectStatus = "ON_HOLD"
	ProjectComplete ProjectStatus = "COMPLETE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

// Project is the delivery record materialized from a signed proposal.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID  uint      `gorm:"index;not null" json:"company_id"`
	Company    Company   `gorm:"foreignKey:CompanyID" json:"-"`
	ProposalID *uint     `gorm:"index" json:"proposal_id,omitempty"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"-"`

	Name string `gorm:"size:200;not null" json:"name"`
	Slug string `gorm:"size:240;uniqueIndex;not null" json:"slug"`

	Status ProjectStatus `gorm:"size:20;not null;default:'PLANNING'" json:"status"`

	ManagerID *uint `gorm:"index" json:"manager_id,omitempty"`
	Manager   *User `gorm:"foreignKey:ManagerID" json:"-"`

	Description  string `gorm:"type:text" json:"description,omitempty"`
	ScopeSummary string `gorm:"type:text" json:"scope_summary,omitempty"`

	IsActive bool   `gorm:"default:true" json:"is_active"`
	Tags     string `gorm:"size:200" json:"tags,omitempty"`

	CreatedByID *uint `json:"created_by_id,omitempty"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"-"`
}
