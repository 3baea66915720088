package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/gate"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/pricing"
	"github.com/beedevservices/portal/internal/validation"
)

// DraftService owns the pricing worksheet and its approval state machine.
// Item mutations recompute the owning draft's totals inside the same
// transaction. Approve, reject, and convert go through the capability
// gate.
type DraftService struct {
	db   *gorm.DB
	gate *gate.Gate[uint]
	log  *zap.Logger
}

func NewDraftService(db *gorm.DB, g *gate.Gate[uint], log *zap.Logger) *DraftService {
	return &DraftService{db: db, gate: g, log: log}
}

func (s *DraftService) authorize(ctx context.Context, actorID uint, c gate.Capability) error {
	if err := s.gate.Authorize(ctx, actorID, c); err != nil {
		return &apperr.PermissionError{Capability: string(c)}
	}
	return nil
}

// DraftInput carries the fields a caller may set when creating a draft.
type DraftInput struct {
	CompanyID    uint
	Title        string
	Currency     string
	ContactName  string
	ContactEmail string
}

// Create opens a new draft in the DRAFT state.
func (s *DraftService) Create(ctx context.Context, actorID uint, in DraftInput) (*models.ProposalDraft, error) {
	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	if in.CompanyID == 0 {
		v["company_id"] = "required"
	}
	if in.ContactEmail != "" {
		validation.Email("contact_email", in.ContactEmail, v)
	}
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid draft", Fields: v}
	}

	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, in.CompanyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.Validation("invalid draft", "company_id", "unknown")
		}
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	draft := &models.ProposalDraft{
		CompanyID:      in.CompanyID,
		CreatedByID:    &actorID,
		Title:          in.Title,
		Currency:       currency,
		ContactName:    in.ContactName,
		ContactEmail:   in.ContactEmail,
		ApprovalStatus: models.ApprovalDraft,
		DepositType:    pricing.DepositNone,
	}
	if err := s.db.WithContext(ctx).Create(draft).Error; err != nil {
		return nil, err
	}
	return draft, nil
}

// Get loads a draft with its lines, company, and catalog references.
func (s *DraftService) Get(ctx context.Context, id uint) (*models.ProposalDraft, error) {
	var draft models.ProposalDraft
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("Company.Contacts").
		Preload("Discount").
		Preload("EstimateTier").
		First(&draft, id).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListForCompany returns a company's drafts, newest first.
func (s *DraftService) ListForCompany(ctx context.Context, companyID uint) ([]models.ProposalDraft, error) {
	var drafts []models.ProposalDraft
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC, id DESC").
		Find(&drafts).Error
	return drafts, err
}

// lockDraft loads the draft under a row lock for a state transition.
func lockDraft(tx *gorm.DB, id uint) (*models.ProposalDraft, error) {
	var draft models.ProposalDraft
	if err := lockForUpdate(tx).First(&draft, id).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// AddItem appends a catalog item to the draft, snapshotting the item's
// name, rate, and base fee so later catalog edits never change this line.
// hours/quantity default to the catalog item's suggested values when nil.
func (s *DraftService) AddItem(ctx context.Context, draftID, catalogItemID uint, hours, quantity *decimal.Decimal) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}

		var ci models.CatalogItem
		err = tx.Preload("JobRate").Preload("BaseSetting").
			Where("id = ? AND is_active = ?", catalogItemID, true).
			First(&ci).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.Validation("invalid line item", "catalog_item_id", "unknown")
			}
			return err
		}

		h := ci.DefaultHours
		if hours != nil {
			h = *hours
		}
		q := ci.DefaultQuantity
		if quantity != nil {
			q = *quantity
		}
		v := validation.Violations{}
		validation.PositiveAmount("hours", h, v)
		validation.PositiveAmount("quantity", q, v)
		if !v.Empty() {
			return &apperr.ValidationError{Msg: "invalid line item", Fields: v}
		}

		var maxSort int
		if err := tx.Model(&models.DraftItem{}).Where("draft_id = ?", draftID).
			Select("COALESCE(MAX(sort_order), 0)").Scan(&maxSort).Error; err != nil {
			return err
		}

		item := models.DraftItem{
			DraftID:       draftID,
			CatalogItemID: ci.ID,
			Name:          ci.Name,
			Description:   ci.Description,
			JobRateID:     ci.JobRateID,
			BaseSettingID: ci.BaseSettingID,
			HourlyRate:    ci.JobRate.HourlyRate,
			BaseRate:      ci.BaseSetting.BaseRate,
			Hours:         h,
			Quantity:      q,
			SortOrder:     maxSort + 1,
		}
		item.LineTotal = item.ComputeLineTotal()
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// UpdateItem changes a line's hours and quantity and recomputes the draft.
func (s *DraftService) UpdateItem(ctx context.Context, draftID, itemID uint, hours, quantity decimal.Decimal) (*models.ProposalDraft, error) {
	v := validation.Violations{}
	validation.PositiveAmount("hours", hours, v)
	validation.PositiveAmount("quantity", quantity, v)
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid line item", Fields: v}
	}
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		var item models.DraftItem
		if err := tx.Where("id = ? AND draft_id = ?", itemID, draftID).First(&item).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.Validation("invalid line item", "item_id", "unknown")
			}
			return err
		}
		item.Hours = hours
		item.Quantity = quantity
		item.LineTotal = item.ComputeLineTotal()
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// RemoveItem deletes a line and recomputes the draft.
func (s *DraftService) RemoveItem(ctx context.Context, draftID, itemID uint) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		res := tx.Where("id = ? AND draft_id = ?", itemID, draftID).Delete(&models.DraftItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Validation("invalid line item", "item_id", "unknown")
		}
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// SetDiscount applies (or, with nil, clears) the draft's discount and
// recomputes.
func (s *DraftService) SetDiscount(ctx context.Context, draftID uint, discountID *uint) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		if discountID != nil {
			var d models.Discount
			if err := tx.First(&d, *discountID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return apperr.Validation("invalid discount", "discount_id", "unknown")
				}
				return err
			}
		}
		draft.DiscountID = discountID
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// SetDeposit changes the deposit configuration and recomputes.
func (s *DraftService) SetDeposit(ctx context.Context, draftID uint, depositType pricing.DepositType, value decimal.Decimal) (*models.ProposalDraft, error) {
	v := validation.Violations{}
	switch depositType {
	case pricing.DepositNone:
		value = decimal.Zero
	case pricing.DepositPercent:
		validation.PercentRange("deposit_value", value, v)
	case pricing.DepositFixed:
		validation.NonNegativeAmount("deposit_value", value, v)
	default:
		v["deposit_type"] = "unknown"
	}
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid deposit", Fields: v}
	}
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		draft.DepositType = depositType
		draft.DepositValue = value
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// SetTax sets the flat pass-through tax amount and recomputes.
func (s *DraftService) SetTax(ctx context.Context, draftID uint, amount decimal.Decimal) (*models.ProposalDraft, error) {
	v := validation.Violations{}
	validation.NonNegativeAmount("tax_amount", amount, v)
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid tax amount", Fields: v}
	}
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		draft.TaxAmount = pricing.Round2(amount)
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// PinEstimateTier pins the estimate to a specific tier; a nil tierID
// returns the draft to automatic tier selection. Either way the bounds
// refresh from the effective tier.
func (s *DraftService) PinEstimateTier(ctx context.Context, draftID uint, tierID *uint) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsEditable() {
			return apperr.Validation("draft is not editable", "approval_status", "not_editable")
		}
		if tierID == nil {
			draft.EstimateManual = false
			draft.EstimateTierID = nil
		} else {
			var tier models.CostTier
			if err := tx.First(&tier, *tierID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return apperr.Validation("invalid estimate tier", "estimate_tier_id", "unknown")
				}
				return err
			}
			draft.EstimateManual = true
			draft.EstimateTierID = tierID
		}
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// Recompute rederives the draft's totals from its stored lines. Exposed
// for callers that changed inputs out of band (e.g. admin fixups); normal
// item writes already recompute.
func (s *DraftService) Recompute(ctx context.Context, draftID uint) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		out = draft
		return s.recompute(tx, draft)
	})
	return out, err
}

// recompute runs inside the caller's transaction. It sums the stored line
// totals, applies discount/tax/deposit via the pricing engine, refreshes
// the estimate tier, and saves the draft.
func (s *DraftService) recompute(tx *gorm.DB, draft *models.ProposalDraft) error {
	var items []models.DraftItem
	if err := tx.Where("draft_id = ?", draft.ID).Order("sort_order, id").Find(&items).Error; err != nil {
		return err
	}
	lineTotals := make([]decimal.Decimal, 0, len(items))
	for i := range items {
		lineTotals = append(lineTotals, items[i].LineTotal)
	}

	now := time.Now()
	var spec *pricing.DiscountSpec
	if draft.DiscountID != nil {
		var disc models.Discount
		if err := tx.First(&disc, *draft.DiscountID).Error; err != nil {
			return err
		}
		spec = disc.Spec(now)
	}

	t := pricing.Compute(lineTotals, spec, draft.TaxAmount, draft.DepositSpec())
	draft.Subtotal = t.Subtotal
	draft.DiscountAmount = t.DiscountAmount
	draft.Total = t.Total
	draft.DepositAmount = t.DepositAmount
	draft.RemainingDue = t.RemainingDue

	if err := s.refreshEstimate(tx, draft, len(items) > 0); err != nil {
		return err
	}
	return tx.Save(draft).Error
}

// refreshEstimate picks the tier for the current total, or keeps the
// pinned tier and only refreshes its bounds. An open-ended tier reports a
// zero high bound. A draft with no items gets no auto-picked tier even
// though a zero total falls inside the lowest bracket; a manual pin is an
// explicit override and is kept.
func (s *DraftService) refreshEstimate(tx *gorm.DB, draft *models.ProposalDraft, hasItems bool) error {
	var tier *models.CostTier
	if draft.EstimateManual && draft.EstimateTierID != nil {
		var pinned models.CostTier
		if err := tx.First(&pinned, *draft.EstimateTierID).Error; err != nil {
			return err
		}
		tier = &pinned
	} else if hasItems {
		matched, err := tierForAmount(tx, draft.Total)
		if err != nil {
			return err
		}
		tier = matched
	}
	if tier == nil {
		draft.EstimateTierID = nil
		draft.EstimateLow = pricing.Zero2()
		draft.EstimateHigh = pricing.Zero2()
		return nil
	}
	draft.EstimateTierID = &tier.ID
	draft.EstimateLow = pricing.Round2(tier.MinTotal)
	if tier.MaxTotal != nil {
		draft.EstimateHigh = pricing.Round2(*tier.MaxTotal)
	} else {
		draft.EstimateHigh = pricing.Zero2()
	}
	return nil
}

// Submit moves the draft to SUBMITTED. Legal from DRAFT and, for
// resubmission, from REJECTED; review notes from a prior rejection are
// kept so the approver sees the history, but the approval stamps reset.
// Requires a usable contact email on the draft or its company.
func (s *DraftService) Submit(ctx context.Context, actorID, draftID uint) (*models.ProposalDraft, error) {
	if err := s.authorize(ctx, actorID, gate.CapDraftSubmit); err != nil {
		return nil, err
	}
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if !draft.CanSubmit() {
			return apperr.Validation("draft cannot be submitted", "approval_status", "invalid_transition")
		}
		if draft.ContactEmail == "" {
			var company models.Company
			if err := tx.Preload("Contacts").First(&company, draft.CompanyID).Error; err != nil {
				return err
			}
			if company.ContactEmail() == "" {
				return apperr.Validation("no usable contact email", "contact_email", "required")
			}
		}
		now := time.Now()
		draft.ApprovalStatus = models.ApprovalSubmitted
		draft.SubmittedAt = &now
		draft.ApprovedAt = nil
		draft.ApprovedByID = nil
		out = draft
		return tx.Save(draft).Error
	})
	return out, err
}

// Approve moves a SUBMITTED draft to APPROVED, stamping the reviewer.
func (s *DraftService) Approve(ctx context.Context, actorID, draftID uint, notes string) (*models.ProposalDraft, error) {
	if err := s.authorize(ctx, actorID, gate.CapDraftApprove); err != nil {
		return nil, err
	}
	return s.review(ctx, actorID, draftID, models.ApprovalApproved, notes)
}

// Reject moves a SUBMITTED draft to REJECTED, stamping the reviewer's
// notes. The owner may edit and resubmit.
func (s *DraftService) Reject(ctx context.Context, actorID, draftID uint, notes string) (*models.ProposalDraft, error) {
	if err := s.authorize(ctx, actorID, gate.CapDraftReject); err != nil {
		return nil, err
	}
	return s.review(ctx, actorID, draftID, models.ApprovalRejected, notes)
}

func (s *DraftService) review(ctx context.Context, actorID, draftID uint, to models.ApprovalStatus, notes string) (*models.ProposalDraft, error) {
	var out *models.ProposalDraft
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		if draft.ApprovalStatus != models.ApprovalSubmitted {
			return apperr.Validation("draft is not under review", "approval_status", "not_submitted")
		}
		draft.ApprovalStatus = to
		draft.ReviewNotes = notes
		if to == models.ApprovalApproved {
			now := time.Now()
			draft.ApprovedAt = &now
			draft.ApprovedByID = &actorID
		}
		out = draft
		return tx.Save(draft).Error
	})
	return out, err
}

// ConvertToProposal snapshots an APPROVED draft into an immutable
// proposal, atomically: copy the lines and the applied discount, emit the
// CREATED event, and flip the draft to CONVERTED. A draft converts at
// most once; concurrent calls serialize on the draft's row lock.
func (s *DraftService) ConvertToProposal(ctx context.Context, actorID, draftID uint) (*models.Proposal, error) {
	if err := s.authorize(ctx, actorID, gate.CapDraftConvert); err != nil {
		return nil, err
	}
	var proposal *models.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := lockDraft(tx, draftID)
		if err != nil {
			return err
		}
		switch draft.ApprovalStatus {
		case models.ApprovalConverted:
			return apperr.Conflict("draft", "already converted")
		case models.ApprovalApproved:
		default:
			return apperr.Validation("draft is not approved", "approval_status", "not_approved")
		}

		var items []models.DraftItem
		if err := tx.Where("draft_id = ?", draft.ID).Order("sort_order, id").Find(&items).Error; err != nil {
			return err
		}

		p := &models.Proposal{
			CompanyID:       draft.CompanyID,
			CreatedByID:     draft.CreatedByID,
			ConvertedFromID: &draft.ID,
			Title:           draft.Title,
			Currency:        draft.Currency,
			AmountSubtotal:  draft.Subtotal,
			AmountTax:       draft.TaxAmount,
			DiscountTotal:   draft.DiscountAmount,
			AmountTotal:     draft.Total,
			DepositType:     draft.DepositType,
			DepositValue:    draft.DepositValue,
			DepositAmount:   draft.DepositAmount,
			RemainingDue:    draft.RemainingDue,
			Status:          models.ProposalStatusDraft,
			// Token issued up front; sign_token is unique, so unissued
			// empty strings would collide across proposals. Expiry is
			// stamped when the link is first handed out.
			SignToken: newOpaqueToken(),
		}
		for _, it := range items {
			p.LineItems = append(p.LineItems, models.ProposalLineItem{
				SortOrder:     it.SortOrder,
				Name:          it.Name,
				Description:   it.Description,
				Hours:         it.Hours,
				Quantity:      it.Quantity,
				JobRateID:     it.JobRateID,
				BaseSettingID: it.BaseSettingID,
				HourlyRate:    it.HourlyRate,
				BaseRate:      it.BaseRate,
				LineTotal:     it.LineTotal,
				// Invoicing treats each line as one billing unit.
				UnitPrice: it.LineTotal,
				Subtotal:  it.LineTotal,
			})
		}
		if draft.DiscountID != nil && draft.DiscountAmount.GreaterThan(decimal.Zero) {
			var disc models.Discount
			if err := tx.First(&disc, *draft.DiscountID).Error; err != nil {
				return err
			}
			p.AppliedDiscounts = append(p.AppliedDiscounts, models.ProposalAppliedDiscount{
				DiscountCode:  disc.Code,
				Name:          disc.Name,
				Kind:          disc.Kind,
				Value:         disc.Value,
				AmountApplied: draft.DiscountAmount,
			})
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := appendEvent(tx, p.ID, models.EventCreated, &actorID, "", map[string]any{"draft_id": draft.ID}); err != nil {
			return err
		}

		draft.ApprovalStatus = models.ApprovalConverted
		if err := tx.Save(draft).Error; err != nil {
			return err
		}
		proposal = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("draft converted",
		zap.Uint("draft_id", draftID),
		zap.Uint("proposal_id", proposal.ID),
		zap.Uint("actor_id", actorID),
	)
	return proposal, nil
}
