package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/models"
)

// DBProvisioner is the default AccountProvisioner: after signature it
// creates a client account for the signer (if none exists) and links them
// as a company contact. Passwordless until the client completes setup.
type DBProvisioner struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDBProvisioner(db *gorm.DB, log *zap.Logger) *DBProvisioner {
	return &DBProvisioner{db: db, log: log}
}

func (p *DBProvisioner) Provision(ctx context.Context, proposal *models.Proposal, signerName, signerEmail string) error {
	email := strings.ToLower(strings.TrimSpace(signerEmail))
	if email == "" {
		return nil
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("email = ?", email).First(&user).Error
		if err == gorm.ErrRecordNotFound {
			first, last := splitName(signerName)
			user = models.User{
				Email:     email,
				FirstName: first,
				LastName:  last,
				Role:      models.RoleClient,
				IsActive:  true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			p.log.Info("client account provisioned",
				zap.Uint("user_id", user.ID),
				zap.Uint("proposal_id", proposal.ID),
			)
		} else if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.CompanyContact{}).
			Where("company_id = ? AND email = ?", proposal.CompanyID, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			contact := models.CompanyContact{
				CompanyID: proposal.CompanyID,
				Name:      signerName,
				Email:     email,
				UserID:    &user.ID,
			}
			return tx.Create(&contact).Error
		}
		return nil
	})
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
