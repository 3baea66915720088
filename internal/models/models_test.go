package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCostTier_Contains(t *testing.T) {
	max1 := dec("500.00")
	tier1 := CostTier{Code: "tier-1", MinTotal: dec("0.00"), MaxTotal: &max1}
	tier2 := CostTier{Code: "tier-2", MinTotal: dec("500.01")}

	tests := []struct {
		name   string
		tier   *CostTier
		amount string
		want   bool
	}{
		{"upper bound inclusive", &tier1, "500.00", true},
		{"just above upper bound", &tier1, "500.01", false},
		{"lower bound inclusive", &tier2, "500.01", true},
		{"open-ended upper", &tier2, "999999.99", true},
		{"below lower bound", &tier2, "500.00", false},
		{"zero in first tier", &tier1, "0.00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tier.Contains(dec(tt.amount)); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestCostTier_Validate(t *testing.T) {
	bad := dec("100.00")
	tier := CostTier{MinTotal: dec("100.00"), MaxTotal: &bad}
	if err := tier.Validate(); err == nil {
		t.Error("expected validation error for max_total == min_total")
	}
	good := dec("100.01")
	tier.MaxTotal = &good
	if err := tier.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	tier.MaxTotal = nil
	if err := tier.Validate(); err != nil {
		t.Errorf("open-ended tier should validate, got %v", err)
	}
}

func TestDiscount_ActiveAt(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		d    Discount
		want bool
	}{
		{"active, no window", Discount{IsActive: true}, true},
		{"inactive flag wins", Discount{IsActive: false}, false},
		{"inside window", Discount{IsActive: true, ValidFrom: &before, ValidUntil: &after}, true},
		{"not yet valid", Discount{IsActive: true, ValidFrom: &after}, false},
		{"already expired", Discount{IsActive: true, ValidUntil: &before}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.ActiveAt(now); got != tt.want {
				t.Errorf("ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProposalDraft_Transitions(t *testing.T) {
	tests := []struct {
		status    ApprovalStatus
		editable  bool
		canSubmit bool
	}{
		{ApprovalDraft, true, true},
		{ApprovalSubmitted, true, false},
		{ApprovalApproved, false, false},
		{ApprovalRejected, true, true},
		{ApprovalConverted, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			d := &ProposalDraft{ApprovalStatus: tt.status}
			if got := d.IsEditable(); got != tt.editable {
				t.Errorf("IsEditable() = %v, want %v", got, tt.editable)
			}
			if got := d.CanSubmit(); got != tt.canSubmit {
				t.Errorf("CanSubmit() = %v, want %v", got, tt.canSubmit)
			}
		})
	}
}

func TestDraftItem_ComputeLineTotal(t *testing.T) {
	item := DraftItem{
		Hours:      dec("10"),
		Quantity:   dec("1"),
		HourlyRate: dec("125.00"),
		BaseRate:   dec("0.00"),
	}
	if got := item.ComputeLineTotal(); !got.Equal(dec("1250.00")) {
		t.Errorf("ComputeLineTotal() = %s, want 1250.00", got)
	}
}

func TestProposal_CountersignDue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		p    Proposal
		want bool
	}{
		{"not required", Proposal{SignedAt: &now}, false},
		{"required, unsigned", Proposal{CountersignRequired: true}, false},
		{"required, signed, pending", Proposal{CountersignRequired: true, SignedAt: &now}, true},
		{"already countersigned", Proposal{CountersignRequired: true, SignedAt: &now, CountersignedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.CountersignDue(); got != tt.want {
				t.Errorf("CountersignDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProposal_LinkExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := Proposal{}
	if p.LinkExpired(now) {
		t.Error("no expiry set should never be expired")
	}
	p.TokenExpiresAt = &future
	if p.LinkExpired(now) {
		t.Error("future expiry reported expired")
	}
	p.TokenExpiresAt = &past
	if !p.LinkExpired(now) {
		t.Error("past expiry not reported expired")
	}
}

func TestInvoice_RefreshStatusFromPayments(t *testing.T) {
	tests := []struct {
		name     string
		status   InvoiceStatus
		total    string
		payments []string
		wantPaid string
		want     InvoiceStatus
	}{
		{"no payments stays sent", InvoiceStatusSent, "100.00", nil, "0.00", InvoiceStatusSent},
		{"partial payment", InvoiceStatusSent, "100.00", []string{"40.00"}, "40.00", InvoiceStatusPartial},
		{"paid in full", InvoiceStatusSent, "100.00", []string{"60.00", "40.00"}, "100.00", InvoiceStatusPaid},
		{"overpaid still paid", InvoiceStatusSent, "100.00", []string{"150.00"}, "150.00", InvoiceStatusPaid},
		{"draft sticks", InvoiceStatusDraft, "100.00", []string{"100.00"}, "100.00", InvoiceStatusDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invoice{Status: tt.status, Total: dec(tt.total)}
			for _, p := range tt.payments {
				inv.Payments = append(inv.Payments, Payment{Amount: dec(p)})
			}
			inv.RefreshStatusFromPayments()
			if !inv.AmountPaid.Equal(dec(tt.wantPaid)) {
				t.Errorf("AmountPaid = %s, want %s", inv.AmountPaid, tt.wantPaid)
			}
			if inv.Status != tt.want {
				t.Errorf("Status = %s, want %s", inv.Status, tt.want)
			}
		})
	}
}

func TestInvoice_RecalcTotals(t *testing.T) {
	inv := Invoice{
		TaxTotal: dec("10.00"),
		LineItems: []InvoiceLineItem{
			{Subtotal: dec("1250.00")},
			{Subtotal: dec("99.99")},
		},
		AppliedDiscounts: []InvoiceAppliedDiscount{
			{AmountApplied: dec("125.00")},
		},
	}
	inv.RecalcTotals()
	if !inv.Subtotal.Equal(dec("1349.99")) {
		t.Errorf("Subtotal = %s", inv.Subtotal)
	}
	if !inv.DiscountTotal.Equal(dec("125.00")) {
		t.Errorf("DiscountTotal = %s", inv.DiscountTotal)
	}
	if !inv.Total.Equal(dec("1234.99")) {
		t.Errorf("Total = %s", inv.Total)
	}
}

func TestCompany_ContactEmail(t *testing.T) {
	c := Company{PrimaryEmail: "office@acme.test"}
	if got := c.ContactEmail(); got != "office@acme.test" {
		t.Errorf("ContactEmail() = %q", got)
	}
	c.Contacts = []CompanyContact{
		{Email: "second@acme.test"},
		{Email: "primary@acme.test", IsPrimary: true},
	}
	if got := c.ContactEmail(); got != "primary@acme.test" {
		t.Errorf("ContactEmail() = %q, want primary contact", got)
	}
	empty := Company{}
	if got := empty.ContactEmail(); got != "" {
		t.Errorf("ContactEmail() = %q, want empty", got)
	}
}

func TestNewInvoiceNumber(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := NewInvoiceNumber(now)
	b := NewInvoiceNumber(now)
	if a == b {
		t.Error("invoice numbers must be unique")
	}
	const prefix = "INV-20260301-"
	if len(a) != len(prefix)+8 || a[:len(prefix)] != prefix {
		t.Errorf("unexpected format: %q", a)
	}
}
