package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/gate"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/notify"
	"github.com/beedevservices/portal/internal/validation"
)

// AccountProvisioner creates a client portal account after a proposal is
// signed. Runs after the signing transaction commits; failures are logged
// and never unwind the signature.
type AccountProvisioner interface {
	Provision(ctx context.Context, proposal *models.Proposal, signerName, signerEmail string) error
}

// ProposalService drives the signing lifecycle of the immutable proposal
// document. Monetary fields are written once at conversion; this service
// only stamps lifecycle timestamps, captures the one-time signature, and
// appends audit events.
type ProposalService struct {
	db          *gorm.DB
	gate        *gate.Gate[uint]
	invoices    *InvoiceService
	messenger   notify.Messenger
	provisioner AccountProvisioner
	log         *zap.Logger

	signingBase string
	tokenTTL    time.Duration
}

func NewProposalService(db *gorm.DB, g *gate.Gate[uint], invoices *InvoiceService, messenger notify.Messenger, provisioner AccountProvisioner, log *zap.Logger, signingBase string, tokenTTL time.Duration) *ProposalService {
	return &ProposalService{
		db:          db,
		gate:        g,
		invoices:    invoices,
		messenger:   messenger,
		provisioner: provisioner,
		log:         log,
		signingBase: signingBase,
		tokenTTL:    tokenTTL,
	}
}

func (s *ProposalService) authorize(ctx context.Context, actorID uint, c gate.Capability) error {
	if err := s.gate.Authorize(ctx, actorID, c); err != nil {
		return &apperr.PermissionError{Capability: string(c)}
	}
	return nil
}

// SigningURL builds the client-facing link for a token. With no base
// configured the bare token is returned.
func (s *ProposalService) SigningURL(token string) string {
	if s.signingBase == "" {
		return token
	}
	return strings.TrimRight(s.signingBase, "/") + "/" + token
}

// Get loads a proposal with its snapshot children and event trail.
func (s *ProposalService) Get(ctx context.Context, id uint) (*models.Proposal, error) {
	var p models.Proposal
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("AppliedDiscounts").
		Preload("Recipients").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("at, id") }).
		Preload("Company.Contacts").
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByToken resolves a signing token to its proposal for the public signing
// page. Expired links fail here, at read time.
func (s *ProposalService) ByToken(ctx context.Context, token string) (*models.Proposal, error) {
	var p models.Proposal
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("AppliedDiscounts").
		Preload("Company").
		Where("sign_token = ?", token).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.Validation("unknown signing link", "token", "unknown")
		}
		return nil, err
	}
	if p.LinkExpired(time.Now()) {
		return nil, apperr.Validation("signing link expired", "token", "expired")
	}
	return &p, nil
}

// EnsureSigningLink generates the opaque token and expiry if the proposal
// has none yet, and returns the signing URL. Idempotent: an existing
// token and expiry are never regenerated.
func (s *ProposalService) EnsureSigningLink(ctx context.Context, proposalID uint) (string, error) {
	var url string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		u, err := s.ensureLinkTx(tx, &p)
		if err != nil {
			return err
		}
		url = u
		return nil
	})
	return url, err
}

func (s *ProposalService) ensureLinkTx(tx *gorm.DB, p *models.Proposal) (string, error) {
	changed := false
	if p.SignToken == "" {
		p.SignToken = newOpaqueToken()
		changed = true
	}
	if p.TokenExpiresAt == nil {
		exp := time.Now().Add(s.tokenTTL)
		p.TokenExpiresAt = &exp
		changed = true
	}
	if changed {
		if err := tx.Save(p).Error; err != nil {
			return "", err
		}
	}
	return s.SigningURL(p.SignToken), nil
}

// AddRecipient registers an address the proposal goes out to. Duplicate
// emails per proposal are rejected.
func (s *ProposalService) AddRecipient(ctx context.Context, proposalID uint, name, email string) (*models.ProposalRecipient, error) {
	v := validation.Violations{}
	validation.Email("email", email, v)
	if !v.Empty() {
		return nil, &apperr.ValidationError{Msg: "invalid recipient", Fields: v}
	}
	r := &models.ProposalRecipient{ProposalID: proposalID, Name: name, Email: email}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ProposalRecipient{}).
			Where("proposal_id = ? AND email = ?", proposalID, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("recipient", "already added")
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// MarkSent ensures the signing link, stamps sent_at on the first send,
// appends the SENT event, and notifies the recipients. The notification
// hook runs after commit; its failure is recorded as a warning event and
// never aborts the transition.
func (s *ProposalService) MarkSent(ctx context.Context, actorID, proposalID uint) (*models.Proposal, error) {
	if err := s.authorize(ctx, actorID, gate.CapProposalSend); err != nil {
		return nil, err
	}
	var (
		out    *models.Proposal
		url    string
		emails []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		err := lockForUpdate(tx).
			Preload("Recipients").
			Preload("Company.Contacts").
			First(&p, proposalID).Error
		if err != nil {
			return err
		}
		if p.IsTerminal() {
			return apperr.Conflict("proposal", "lifecycle complete")
		}

		for _, r := range p.Recipients {
			emails = append(emails, r.Email)
		}
		if len(emails) == 0 {
			// Fall back to the company's best contact address.
			addr := p.Company.ContactEmail()
			if addr == "" {
				return apperr.Validation("no recipients", "recipients", "required")
			}
			rec := models.ProposalRecipient{ProposalID: p.ID, Email: addr}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			emails = append(emails, addr)
		}

		u, err := s.ensureLinkTx(tx, &p)
		if err != nil {
			return err
		}
		url = u

		if p.SentAt == nil {
			now := time.Now()
			p.SentAt = &now
			if p.Status == models.ProposalStatusDraft {
				p.Status = models.ProposalStatusSent
			}
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		if err := appendEvent(tx, p.ID, models.EventSent, &actorID, "", map[string]any{"recipients": emails}); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sendErr := s.messenger.Send(ctx, out, emails, url); sendErr != nil {
		s.log.Warn("proposal notification failed",
			zap.Uint("proposal_id", out.ID),
			zap.Error(sendErr),
		)
		warn := map[string]any{"warning": "notification_failed", "error": sendErr.Error()}
		if evErr := appendEvent(s.db.WithContext(ctx), out.ID, models.EventUpdated, &actorID, "", warn); evErr != nil {
			s.log.Error("warning event write failed", zap.Uint("proposal_id", out.ID), zap.Error(evErr))
		}
	}
	return out, nil
}

// MarkViewed records a view. Employee previews only log an event and
// never touch client-facing state; the first client view stamps viewed_at
// and advances SENT to VIEWED. Returns whether this was the first client
// view.
func (s *ProposalService) MarkViewed(ctx context.Context, proposalID uint, actorID *uint, ip string, asEmployee bool) (bool, error) {
	if asEmployee {
		err := appendEvent(s.db.WithContext(ctx), proposalID, models.EventViewed, actorID, ip,
			map[string]any{"employee_preview": true})
		return false, err
	}
	first := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		first = p.ViewedAt == nil
		if first {
			now := time.Now()
			p.ViewedAt = &now
			if p.Status == models.ProposalStatusSent {
				p.Status = models.ProposalStatusViewed
			}
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		return appendEvent(tx, p.ID, models.EventViewed, actorID, ip, map[string]any{"first_view": first})
	})
	return first, err
}

// SignatureInput is the client's signature capture.
type SignatureInput struct {
	Name           string
	Email          string
	IP             string
	Payload        string
	CustomerUserID *uint
}

// MarkSigned captures the signature once, materializes the deposit
// invoice inside the same transaction, and appends the SIGNED event. A
// signed proposal is never left without its invoice; a proposal is never
// invoiced twice.
func (s *ProposalService) MarkSigned(ctx context.Context, proposalID uint, in SignatureInput) (*models.Proposal, *models.Invoice, error) {
	v := validation.Violations{}
	validation.Required("signer_name", in.Name, v)
	validation.Email("signer_email", in.Email, v)
	if !v.Empty() {
		return nil, nil, &apperr.ValidationError{Msg: "invalid signature", Fields: v}
	}

	// Expiry is checked up front so the EXPIRED flip survives; the signing
	// transaction below would roll it back along with the error.
	var probe models.Proposal
	if err := s.db.WithContext(ctx).First(&probe, proposalID).Error; err != nil {
		return nil, nil, err
	}
	if probe.SignedAt == nil && !probe.IsTerminal() && probe.LinkExpired(time.Now()) {
		if err := s.db.WithContext(ctx).Model(&models.Proposal{}).
			Where("id = ?", proposalID).
			Update("status", models.ProposalStatusExpired).Error; err != nil {
			return nil, nil, err
		}
		return nil, nil, apperr.Validation("signing link expired", "token", "expired")
	}

	var (
		out *models.Proposal
		inv *models.Invoice
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		err := lockForUpdate(tx).
			Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
			Preload("AppliedDiscounts").
			First(&p, proposalID).Error
		if err != nil {
			return err
		}
		if p.SignedAt != nil {
			return apperr.Conflict("proposal", "already signed")
		}
		if p.Status == models.ProposalStatusDeclined || p.Status == models.ProposalStatusExpired {
			return apperr.Validation("proposal is closed", "status", "terminal")
		}
		now := time.Now()
		if p.LinkExpired(now) {
			return apperr.Validation("signing link expired", "token", "expired")
		}

		p.SignedAt = &now
		p.Status = models.ProposalStatusSigned
		p.SignerName = in.Name
		p.SignerEmail = in.Email
		p.SignerIP = in.IP
		if err := tx.Save(&p).Error; err != nil {
			return err
		}

		created, err := s.invoices.fromProposalTx(tx, &p, in.CustomerUserID, in.CustomerUserID, now)
		if err != nil {
			return err
		}
		payload := map[string]any{
			"signer_name":  in.Name,
			"signer_email": in.Email,
			"payload":      in.Payload,
			"invoice_id":   created.ID,
		}
		if err := appendEvent(tx, p.ID, models.EventSigned, in.CustomerUserID, in.IP, payload); err != nil {
			return err
		}
		out = &p
		inv = created
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("proposal signed",
		zap.Uint("proposal_id", out.ID),
		zap.Uint("invoice_id", inv.ID),
		zap.String("signer_email", in.Email),
	)
	if s.provisioner != nil {
		if provErr := s.provisioner.Provision(ctx, out, in.Name, in.Email); provErr != nil {
			s.log.Warn("account provisioning failed",
				zap.Uint("proposal_id", out.ID),
				zap.Error(provErr),
			)
		}
	}
	return out, inv, nil
}

// MarkDeclined closes the proposal from the client side.
func (s *ProposalService) MarkDeclined(ctx context.Context, proposalID uint, actorID *uint, ip, reason string) (*models.Proposal, error) {
	var out *models.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		if p.IsTerminal() {
			return apperr.Conflict("proposal", "lifecycle complete")
		}
		now := time.Now()
		p.DeclinedAt = &now
		p.Status = models.ProposalStatusDeclined
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		if err := appendEvent(tx, p.ID, models.EventDeclined, actorID, ip, map[string]any{"reason": reason}); err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

// MarkCountersigned records the internal countersignature. Only
// meaningful on a signed proposal that requires one; independent of
// invoice creation, which happened at client-signature time.
func (s *ProposalService) MarkCountersigned(ctx context.Context, actorID, proposalID uint, notes string) (*models.Proposal, error) {
	if err := s.authorize(ctx, actorID, gate.CapProposalCountersign); err != nil {
		return nil, err
	}
	var out *models.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		if !p.CountersignRequired {
			return apperr.Validation("countersignature not required", "countersign_required", "not_required")
		}
		if p.SignedAt == nil {
			return apperr.Validation("proposal is not signed", "signed_at", "required")
		}
		if p.CountersignedAt != nil {
			return apperr.Conflict("proposal", "already countersigned")
		}
		now := time.Now()
		p.CountersignedAt = &now
		p.CountersignedByID = &actorID
		p.CountersignNotes = notes
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		if err := appendEvent(tx, p.ID, models.EventCountersigned, &actorID, "", nil); err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

// SetCountersignRequired flips the internal countersign requirement.
// Locked once the client has signed.
func (s *ProposalService) SetCountersignRequired(ctx context.Context, actorID, proposalID uint, required bool) (*models.Proposal, error) {
	if err := s.authorize(ctx, actorID, gate.CapProposalCountersign); err != nil {
		return nil, err
	}
	var out *models.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		if p.SignedAt != nil {
			return apperr.Validation("proposal already signed", "signed_at", "immutable")
		}
		p.CountersignRequired = required
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

// Comment appends a COMMENT event to the trail.
func (s *ProposalService) Comment(ctx context.Context, proposalID uint, actorID *uint, body string) error {
	v := validation.Violations{}
	validation.Required("body", body, v)
	if !v.Empty() {
		return &apperr.ValidationError{Msg: "invalid comment", Fields: v}
	}
	return appendEvent(s.db.WithContext(ctx), proposalID, models.EventComment, actorID, "",
		map[string]any{"body": body})
}

// CountersignQueue lists proposals awaiting an internal countersignature,
// oldest signature first. Dashboard feed; gates nothing.
func (s *ProposalService) CountersignQueue(ctx context.Context) ([]models.Proposal, error) {
	var out []models.Proposal
	err := s.db.WithContext(ctx).
		Where("countersign_required = ? AND signed_at IS NOT NULL AND countersigned_at IS NULL", true).
		Order("signed_at").
		Find(&out).Error
	return out, err
}
