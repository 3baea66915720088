package models

import "time"

// CompanyStatus tracks where a company sits in the pipeline.
type CompanyStatus string

const (
	CompanyProspect CompanyStatus = "PROSPECT"
	CompanyActive   CompanyStatus = "ACTIVE"
	CompanyInactive CompanyStatus = "INACTIVE"
)

// Company is a client organization drafts and proposals belong to.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Slug string `gorm:"size:220;uniqueIndex" json:"slug"`

	PrimaryEmail string `gorm:"size:254" json:"primary_email,omitempty"`
	Phone        string `gorm:"size:30" json:"phone,omitempty"`

	AddressLine1 string `gorm:"size:200" json:"address_line1,omitempty"`
	AddressLine2 string `gorm:"size:200" json:"address_line2,omitempty"`
	City         string `gorm:"size:120" json:"city,omitempty"`
	StateRegion  string `gorm:"size:120" json:"state_region,omitempty"`
	PostalCode   string `gorm:"size:20" json:"postal_code,omitempty"`
	Country      string `gorm:"size:120;default:'USA'" json:"country,omitempty"`

	Website string        `gorm:"size:254" json:"website,omitempty"`
	Status  CompanyStatus `gorm:"size:20;default:'PROSPECT'" json:"status"`
	Notes   string        `gorm:"type:text" json:"notes,omitempty"`

	CreatedByID *uint `json:"created_by_id,omitempty"`

	Contacts []CompanyContact `gorm:"foreignKey:CompanyID" json:"contacts,omitempty"`
}

// ContactEmail returns the best email to reach the company: the primary
// contact's address, falling back to the company's own primary email.
// Empty when neither exists.
func (c *Company) ContactEmail() string {
	for _, ct := range c.Contacts {
		if ct.IsPrimary && ct.Email != "" {
			return ct.Email
		}
	}
	for _, ct := range c.Contacts {
		if ct.Email != "" {
			return ct.Email
		}
	}
	return c.PrimaryEmail
}

// CompanyContact is a person at a client company, optionally linked to a
// portal user account once one exists.
type CompanyContact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID uint    `gorm:"index;not null" json:"company_id"`
	Company   Company `gorm:"foreignKey:CompanyID" json:"-"`

	Name      string `gorm:"size:160" json:"name"`
	Email     string `gorm:"size:254;index" json:"email"`
	Title     string `gorm:"size:120" json:"title,omitempty"`
	IsPrimary bool   `gorm:"default:false" json:"is_primary"`

	UserID *uint `gorm:"index" json:"user_id,omitempty"`
	User   *User `gorm:"foreignKey:UserID" json:"-"`
}
