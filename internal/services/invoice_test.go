package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/models"
)

// signedProposalWithInvoice runs the full happy path up to signature.
func signedProposalWithInvoice(t *testing.T, env *testEnv) (*models.Proposal, *models.Invoice) {
	t.Helper()
	ctx := context.Background()
	proposal := convertedProposal(t, env)
	_, err := env.proposals.MarkSent(ctx, env.employee.ID, proposal.ID)
	require.NoError(t, err)
	signed, inv, err := env.proposals.MarkSigned(ctx, proposal.ID, SignatureInput{
		Name:  "Dana Acme",
		Email: "dana@acme.test",
	})
	require.NoError(t, err)
	return signed, inv
}

func TestFromProposalGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	proposal := convertedProposal(t, env)

	// Unsigned proposals cannot be invoiced.
	_, err := env.invoices.FromProposal(ctx, proposal.ID, nil, nil)
	require.True(t, apperr.IsValidation(err))

	signed, inv := signedProposalWithInvoice(t, env)

	// Signing already materialized the invoice; a manual retry conflicts.
	_, err = env.invoices.FromProposal(ctx, signed.ID, nil, nil)
	require.True(t, apperr.IsConflict(err))

	loaded, err := env.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.LineItems, 1)
	assert.Equal(t, "1250.00", loaded.LineItems[0].Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", loaded.LineItems[0].Quantity.StringFixed(2))
	require.Len(t, loaded.AppliedDiscounts, 1)
	assert.Equal(t, "125.00", loaded.AppliedDiscounts[0].AmountApplied.StringFixed(2))
	assert.NotEmpty(t, loaded.ViewToken)
}

func TestRecordPaymentStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, inv := signedProposalWithInvoice(t, env)

	// Partial payment of the deposit.
	after, err := env.invoices.RecordPayment(ctx, inv.ID, PaymentInput{
		Amount: dec(t, "562.50"),
		Method: models.PaymentCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPartial, after.Status)
	assert.Equal(t, "562.50", after.AmountPaid.StringFixed(2))
	assert.Equal(t, "562.50", after.BalanceDue().StringFixed(2))

	// The remainder settles the invoice.
	after, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentInput{
		Amount: dec(t, "562.50"),
		Method: models.PaymentACH,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, after.Status)
	assert.Equal(t, "0.00", after.BalanceDue().StringFixed(2))

	var payments int64
	env.db.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&payments)
	assert.Equal(t, int64(2), payments)
}

func TestRecordPaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, inv := signedProposalWithInvoice(t, env)

	_, err := env.invoices.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec(t, "0")})
	require.True(t, apperr.IsValidation(err))
	_, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec(t, "-10")})
	require.True(t, apperr.IsValidation(err))
}

func TestVoidedInvoiceRefusesPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, inv := signedProposalWithInvoice(t, env)

	voided, err := env.invoices.Void(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoid, voided.Status)

	_, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec(t, "100.00")})
	require.True(t, apperr.IsConflict(err))
}

func TestInvoiceByViewToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, inv := signedProposalWithInvoice(t, env)

	found, err := env.invoices.ByViewToken(ctx, inv.ViewToken)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)
}
