package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/apperr"
	portaldb "github.com/beedevservices/portal/internal/db"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/policy"
	"github.com/beedevservices/portal/internal/pricing"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// captureMessenger records the last delivery and optionally fails.
type captureMessenger struct {
	calls  int
	emails []string
	url    string
	err    error
}

func (m *captureMessenger) Send(_ context.Context, _ *models.Proposal, emails []string, url string) error {
	m.calls++
	m.emails = emails
	m.url = url
	return m.err
}

type testEnv struct {
	db       *gorm.DB
	owner    models.User
	employee models.User
	company  models.Company
	item     models.CatalogItem
	discount models.Discount

	catalog   *CatalogService
	drafts    *DraftService
	proposals *ProposalService
	invoices  *InvoiceService
	projects  *ProjectService
	messenger *captureMessenger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	// One pooled connection: each new connection to ::memory: would
	// otherwise open its own empty database.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, portaldb.Migrate(gdb))
	portaldb.Seed(gdb)

	env := &testEnv{db: gdb}

	env.owner = models.User{Email: "owner@beedev.test", Role: models.RoleOwner, IsActive: true}
	require.NoError(t, gdb.Create(&env.owner).Error)
	env.employee = models.User{Email: "emp@beedev.test", Role: models.RoleEmployee, IsActive: true}
	require.NoError(t, gdb.Create(&env.employee).Error)

	env.company = models.Company{
		Name:         "Acme Co",
		Slug:         "acme-co",
		PrimaryEmail: "billing@acme.test",
		Status:       models.CompanyActive,
	}
	require.NoError(t, gdb.Create(&env.company).Error)

	var devRate models.JobRate
	require.NoError(t, gdb.Where("code = ?", "dev").First(&devRate).Error)
	var noneBase models.BaseSetting
	require.NoError(t, gdb.Where("code = ?", "none").First(&noneBase).Error)

	env.item = models.CatalogItem{
		Code:            "web-dev",
		Name:            "Web development",
		JobRateID:       devRate.ID,
		BaseSettingID:   noneBase.ID,
		DefaultHours:    dec(t, "10"),
		DefaultQuantity: dec(t, "1"),
		IsActive:        true,
	}
	require.NoError(t, gdb.Create(&env.item).Error)

	env.discount = models.Discount{
		Code:     "launch10",
		Name:     "Launch special",
		Kind:     pricing.DiscountPercent,
		Value:    dec(t, "10"),
		IsActive: true,
	}
	require.NoError(t, gdb.Create(&env.discount).Error)

	log := zap.NewNop()
	g := policy.NewGate(gdb)
	env.messenger = &captureMessenger{}
	env.catalog = NewCatalogService(gdb)
	env.drafts = NewDraftService(gdb, g, log)
	env.invoices = NewInvoiceService(gdb, log)
	env.projects = NewProjectService(gdb)
	env.proposals = NewProposalService(gdb, g, env.invoices, env.messenger,
		NewDBProvisioner(gdb, log), log, "https://portal.test/sign", 14*24*time.Hour)
	return env
}

// workedDraft builds the canonical 10h dev draft with the 10% discount
// and a 50% deposit: subtotal 1250.00, total 1125.00, deposit 562.50.
func workedDraft(t *testing.T, env *testEnv) *models.ProposalDraft {
	t.Helper()
	ctx := context.Background()
	draft, err := env.drafts.Create(ctx, env.employee.ID, DraftInput{
		CompanyID: env.company.ID,
		Title:     "Acme site build",
	})
	require.NoError(t, err)
	_, err = env.drafts.AddItem(ctx, draft.ID, env.item.ID, nil, nil)
	require.NoError(t, err)
	_, err = env.drafts.SetDiscount(ctx, draft.ID, &env.discount.ID)
	require.NoError(t, err)
	draft, err = env.drafts.SetDeposit(ctx, draft.ID, pricing.DepositPercent, dec(t, "50"))
	require.NoError(t, err)
	return draft
}

func TestDraftTotalsWorkedExample(t *testing.T) {
	env := newTestEnv(t)
	draft := workedDraft(t, env)

	assert.Equal(t, "1250.00", draft.Subtotal.StringFixed(2))
	assert.Equal(t, "125.00", draft.DiscountAmount.StringFixed(2))
	assert.Equal(t, "1125.00", draft.Total.StringFixed(2))
	assert.Equal(t, "562.50", draft.DepositAmount.StringFixed(2))
	assert.Equal(t, "562.50", draft.RemainingDue.StringFixed(2))

	// 1125.00 lands in the seeded first bracket.
	require.NotNil(t, draft.EstimateTierID)
	var tier models.CostTier
	require.NoError(t, env.db.First(&tier, *draft.EstimateTierID).Error)
	assert.Equal(t, "tier-1", tier.Code)
	assert.Equal(t, "0.00", draft.EstimateLow.StringFixed(2))
	assert.Equal(t, "1250.00", draft.EstimateHigh.StringFixed(2))
}

func TestItemEditsRecomputeSynchronously(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	loaded, err := env.drafts.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)

	// Doubling hours doubles the line and all aggregates, immediately.
	updated, err := env.drafts.UpdateItem(ctx, draft.ID, loaded.Items[0].ID, dec(t, "20"), dec(t, "1"))
	require.NoError(t, err)
	assert.Equal(t, "2500.00", updated.Subtotal.StringFixed(2))
	assert.Equal(t, "2250.00", updated.Total.StringFixed(2))

	// Tier follows the new total into the second bracket.
	var tier models.CostTier
	require.NotNil(t, updated.EstimateTierID)
	require.NoError(t, env.db.First(&tier, *updated.EstimateTierID).Error)
	assert.Equal(t, "tier-2", tier.Code)

	removed, err := env.drafts.RemoveItem(ctx, draft.ID, loaded.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", removed.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", removed.Total.StringFixed(2))
	assert.Nil(t, removed.EstimateTierID)
}

func TestRecomputeIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	again, err := env.drafts.Recompute(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Subtotal.StringFixed(2), again.Subtotal.StringFixed(2))
	assert.Equal(t, draft.DiscountAmount.StringFixed(2), again.DiscountAmount.StringFixed(2))
	assert.Equal(t, draft.Total.StringFixed(2), again.Total.StringFixed(2))
	assert.Equal(t, draft.DepositAmount.StringFixed(2), again.DepositAmount.StringFixed(2))
	assert.Equal(t, draft.RemainingDue.StringFixed(2), again.RemainingDue.StringFixed(2))
}

func TestPinnedEstimateTierSurvivesRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	var tier3 models.CostTier
	require.NoError(t, env.db.Where("code = ?", "tier-3").First(&tier3).Error)

	pinned, err := env.drafts.PinEstimateTier(ctx, draft.ID, &tier3.ID)
	require.NoError(t, err)
	require.NotNil(t, pinned.EstimateTierID)
	assert.Equal(t, tier3.ID, *pinned.EstimateTierID)
	assert.True(t, pinned.EstimateManual)
	assert.Equal(t, "3000.01", pinned.EstimateLow.StringFixed(2))
	// Open-ended bracket reports no high bound.
	assert.Equal(t, "0.00", pinned.EstimateHigh.StringFixed(2))

	// Further recomputes keep the pin even though the total matches tier-1.
	again, err := env.drafts.Recompute(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, again.EstimateTierID)
	assert.Equal(t, tier3.ID, *again.EstimateTierID)

	unpinned, err := env.drafts.PinEstimateTier(ctx, draft.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, unpinned.EstimateTierID)
	var auto models.CostTier
	require.NoError(t, env.db.First(&auto, *unpinned.EstimateTierID).Error)
	assert.Equal(t, "tier-1", auto.Code)
}

func TestSubmitRequiresContactEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bare := models.Company{Name: "No Mail LLC", Slug: "no-mail-llc"}
	require.NoError(t, env.db.Create(&bare).Error)
	draft, err := env.drafts.Create(ctx, env.employee.ID, DraftInput{CompanyID: bare.ID, Title: "Quiet build"})
	require.NoError(t, err)

	_, err = env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.Error(t, err)
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "required", ve.Fields["contact_email"])

	// The draft's own contact email is enough.
	withEmail, err := env.drafts.Create(ctx, env.employee.ID, DraftInput{
		CompanyID:    bare.ID,
		Title:        "Quiet build 2",
		ContactEmail: "someone@nomail.test",
	})
	require.NoError(t, err)
	_, err = env.drafts.Submit(ctx, env.employee.ID, withEmail.ID)
	require.NoError(t, err)
}

func TestApprovalStateMachine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	// Approve before submission is illegal.
	_, err := env.drafts.Approve(ctx, env.owner.ID, draft.ID, "")
	require.True(t, apperr.IsValidation(err))

	submitted, err := env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalSubmitted, submitted.ApprovalStatus)
	assert.NotNil(t, submitted.SubmittedAt)

	// Employees cannot approve.
	_, err = env.drafts.Approve(ctx, env.employee.ID, draft.ID, "lgtm")
	require.True(t, apperr.IsPermission(err))

	approved, err := env.drafts.Approve(ctx, env.owner.ID, draft.ID, "lgtm")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	require.NotNil(t, approved.ApprovedByID)
	assert.Equal(t, env.owner.ID, *approved.ApprovedByID)

	// Approved drafts are frozen.
	_, err = env.drafts.AddItem(ctx, draft.ID, env.item.ID, nil, nil)
	require.True(t, apperr.IsValidation(err))
}

func TestRejectionAllowsResubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	_, err := env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.NoError(t, err)
	rejected, err := env.drafts.Reject(ctx, env.owner.ID, draft.ID, "scope too thin")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, "scope too thin", rejected.ReviewNotes)

	// Rejected drafts stay editable and can go around again.
	loaded, err := env.drafts.Get(ctx, draft.ID)
	require.NoError(t, err)
	_, err = env.drafts.UpdateItem(ctx, draft.ID, loaded.Items[0].ID, dec(t, "12"), dec(t, "1"))
	require.NoError(t, err)

	resubmitted, err := env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalSubmitted, resubmitted.ApprovalStatus)
	assert.Nil(t, resubmitted.ApprovedAt)
	assert.Equal(t, "scope too thin", resubmitted.ReviewNotes)
}

func TestConvertToProposalSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	_, err := env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.NoError(t, err)

	// Conversion requires approval first.
	_, err = env.drafts.ConvertToProposal(ctx, env.owner.ID, draft.ID)
	require.True(t, apperr.IsValidation(err))

	_, err = env.drafts.Approve(ctx, env.owner.ID, draft.ID, "")
	require.NoError(t, err)

	proposal, err := env.drafts.ConvertToProposal(ctx, env.owner.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "1125.00", proposal.AmountTotal.StringFixed(2))
	assert.Equal(t, "1250.00", proposal.AmountSubtotal.StringFixed(2))
	assert.Equal(t, "562.50", proposal.DepositAmount.StringFixed(2))
	assert.Equal(t, "562.50", proposal.RemainingDue.StringFixed(2))

	require.Len(t, proposal.LineItems, 1)
	li := proposal.LineItems[0]
	assert.Equal(t, "1250.00", li.LineTotal.StringFixed(2))
	// Invoice-compatible fields carry the pre-discount line value.
	assert.Equal(t, "1250.00", li.UnitPrice.StringFixed(2))
	assert.Equal(t, "1250.00", li.Subtotal.StringFixed(2))

	require.Len(t, proposal.AppliedDiscounts, 1)
	assert.Equal(t, "launch10", proposal.AppliedDiscounts[0].DiscountCode)
	assert.Equal(t, "125.00", proposal.AppliedDiscounts[0].AmountApplied.StringFixed(2))

	var events []models.ProposalEvent
	require.NoError(t, env.db.Where("proposal_id = ?", proposal.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCreated, events[0].Kind)

	// The draft is terminal; a second conversion conflicts.
	var frozen models.ProposalDraft
	require.NoError(t, env.db.First(&frozen, draft.ID).Error)
	assert.Equal(t, models.ApprovalConverted, frozen.ApprovalStatus)
	_, err = env.drafts.ConvertToProposal(ctx, env.owner.ID, draft.ID)
	require.True(t, apperr.IsConflict(err))
}

// convertedProposal walks the worked draft through submit/approve/convert.
func convertedProposal(t *testing.T, env *testEnv) *models.Proposal {
	t.Helper()
	ctx := context.Background()
	draft := workedDraft(t, env)
	_, err := env.drafts.Submit(ctx, env.employee.ID, draft.ID)
	require.NoError(t, err)
	_, err = env.drafts.Approve(ctx, env.owner.ID, draft.ID, "")
	require.NoError(t, err)
	proposal, err := env.drafts.ConvertToProposal(ctx, env.owner.ID, draft.ID)
	require.NoError(t, err)
	return proposal
}

func TestConvertIssuesDistinctSignTokens(t *testing.T) {
	env := newTestEnv(t)

	// sign_token carries a unique index; a second conversion must not
	// collide with the first proposal's token.
	first := convertedProposal(t, env)
	second := convertedProposal(t, env)

	assert.NotEmpty(t, first.SignToken)
	assert.NotEmpty(t, second.SignToken)
	assert.NotEqual(t, first.SignToken, second.SignToken)
}

func TestCatalogEditsDoNotTouchSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := workedDraft(t, env)

	var devRate models.JobRate
	require.NoError(t, env.db.Where("code = ?", "dev").First(&devRate).Error)
	devRate.HourlyRate = dec(t, "200.00")
	require.NoError(t, env.catalog.SaveJobRate(ctx, env.owner.ID, &devRate))

	// Existing lines keep the copied rate; only the recompute over
	// unchanged snapshots runs.
	again, err := env.drafts.Recompute(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "1250.00", again.Subtotal.StringFixed(2))

	var audits int64
	env.db.Model(&models.AuditLog{}).Where("entity_type = ?", "job_rate").Count(&audits)
	assert.Equal(t, int64(1), audits)
}
