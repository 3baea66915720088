package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/pricing"
	"github.com/beedevservices/portal/internal/validation"
)

// InvoiceService materializes invoices from signed proposals and records
// payments against them. An invoice is created at most once per proposal;
// the explicit in-transaction check is backed by the unique index on
// proposal_id.
type InvoiceService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewInvoiceService(db *gorm.DB, log *zap.Logger) *InvoiceService {
	return &InvoiceService{db: db, log: log}
}

// Get loads an invoice with its lines, discounts, and payments.
func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("AppliedDiscounts").
		Preload("Payments").
		First(&inv, id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ByViewToken resolves the public client view of an invoice.
func (s *InvoiceService) ByViewToken(ctx context.Context, token string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("AppliedDiscounts").
		Preload("Payments").
		Where("view_token = ?", token).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FromProposal materializes the deposit invoice for a signed proposal.
// Fails with a conflict if the proposal already has one.
func (s *InvoiceService) FromProposal(ctx context.Context, proposalID uint, customerUserID, actorID *uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		err := lockForUpdate(tx).
			Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
			Preload("AppliedDiscounts").
			First(&p, proposalID).Error
		if err != nil {
			return err
		}
		if p.SignedAt == nil {
			return apperr.Validation("proposal is not signed", "signed_at", "required")
		}
		inv, err := s.fromProposalTx(tx, &p, customerUserID, actorID, time.Now())
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

// fromProposalTx runs inside the caller's transaction so signing and
// invoice creation commit or roll back together. The proposal must be
// loaded with its line items and applied discounts.
func (s *InvoiceService) fromProposalTx(tx *gorm.DB, p *models.Proposal, customerUserID, actorID *uint, now time.Time) (*models.Invoice, error) {
	var existing int64
	if err := tx.Model(&models.Invoice{}).Where("proposal_id = ?", p.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperr.Conflict("invoice", "already invoiced")
	}

	inv := &models.Invoice{
		CompanyID:      p.CompanyID,
		ProposalID:     &p.ID,
		CustomerUserID: customerUserID,
		Number:         models.NewInvoiceNumber(now),
		Currency:       p.Currency,
		IssueDate:      now,
		TaxTotal:       p.AmountTax,
		MinimumDue:     p.DepositAmount,
		Status:         models.InvoiceStatusSent,
		ViewToken:      newOpaqueToken(),
		CreatedByID:    actorID,
	}
	one := decimal.NewFromInt(1)
	for _, li := range p.LineItems {
		inv.LineItems = append(inv.LineItems, models.InvoiceLineItem{
			SortOrder:   li.SortOrder,
			Name:        li.Name,
			Description: li.Description,
			Quantity:    one,
			UnitPrice:   li.UnitPrice,
			Subtotal:    li.Subtotal,
		})
	}
	for _, ad := range p.AppliedDiscounts {
		inv.AppliedDiscounts = append(inv.AppliedDiscounts, models.InvoiceAppliedDiscount{
			DiscountCode:  ad.DiscountCode,
			Name:          ad.Name,
			Kind:          ad.Kind,
			Value:         ad.Value,
			AmountApplied: ad.AmountApplied,
			SortOrder:     ad.SortOrder,
		})
	}
	inv.RecalcTotals()
	if err := tx.Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// PaymentInput carries one received payment.
type PaymentInput struct {
	Amount      decimal.Decimal
	Method      models.PaymentMethod
	Reference   string
	ReceivedAt  time.Time
	Notes       string
	PayerUserID *uint
	RecordedBy  *uint
}

// RecordPayment inserts the payment and synchronously recomputes the
// invoice's amount_paid and status in the same transaction.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID uint, in PaymentInput) (*models.Invoice, error) {
	v := validation.Violations{}
	validation.PositiveAmount("amount", in.Amount, v)
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid payment", Fields: v}
	}
	if in.Method == "" {
		in.Method = models.PaymentOther
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = time.Now()
	}

	var out *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := lockForUpdate(tx).First(&inv, invoiceID).Error; err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusVoid {
			return apperr.Conflict("invoice", "voided")
		}
		payment := models.Payment{
			InvoiceID:   inv.ID,
			Amount:      pricing.Round2(in.Amount),
			Method:      in.Method,
			Reference:   in.Reference,
			PayerUserID: in.PayerUserID,
			ReceivedAt:  in.ReceivedAt,
			Notes:       in.Notes,
			CreatedByID: in.RecordedBy,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Find(&inv.Payments).Error; err != nil {
			return err
		}
		inv.RefreshStatusFromPayments()
		if err := tx.Save(&inv).Error; err != nil {
			return err
		}
		out = &inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment recorded",
		zap.Uint("invoice_id", out.ID),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

// MarkSent moves a DRAFT invoice to SENT. Idempotent for invoices already
// past DRAFT.
func (s *InvoiceService) MarkSent(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := lockForUpdate(tx).First(&inv, invoiceID).Error; err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusVoid {
			return apperr.Conflict("invoice", "voided")
		}
		if inv.Status == models.InvoiceStatusDraft {
			inv.Status = models.InvoiceStatusSent
			if err := tx.Save(&inv).Error; err != nil {
				return err
			}
		}
		out = &inv
		return nil
	})
	return out, err
}

// Void terminates an invoice. Paid invoices cannot be voided.
func (s *InvoiceService) Void(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := lockForUpdate(tx).First(&inv, invoiceID).Error; err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusPaid {
			return apperr.Conflict("invoice", "already paid")
		}
		inv.Status = models.InvoiceStatusVoid
		if err := tx.Save(&inv).Error; err != nil {
			return err
		}
		out = &inv
		return nil
	})
	return out, err
}
