// Package pdf defines the rendering boundary. The core builds a document
// model from a proposal and hands it to a Renderer; rendering itself is
// an external collaborator with no side effects on workflow state.
package pdf

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/beedevservices/portal/internal/models"
)

// Line is one row on the rendered document.
type Line struct {
	Name        string
	Description string
	Hours       decimal.Decimal
	Quantity    decimal.Decimal
	LineTotal   decimal.Decimal
}

// AppliedDiscount mirrors the proposal's discount snapshot for display.
type AppliedDiscount struct {
	Name          string
	AmountApplied decimal.Decimal
}

// Document is the render-ready view of a proposal.
type Document struct {
	Title    string
	Company  string
	Currency string

	Lines     []Line
	Discounts []AppliedDiscount

	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	Total         decimal.Decimal
	DepositAmount decimal.Decimal
	RemainingDue  decimal.Decimal
}

// Renderer turns a document model into PDF bytes. Pure function.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// BuildProposalDocument assembles the document model from a proposal with
// its line items and discounts loaded, ordered for display.
func BuildProposalDocument(p *models.Proposal) Document {
	doc := Document{
		Title:         p.Title,
		Company:       p.Company.Name,
		Currency:      p.Currency,
		Subtotal:      p.AmountSubtotal,
		DiscountTotal: p.DiscountTotal,
		TaxTotal:      p.AmountTax,
		Total:         p.AmountTotal,
		DepositAmount: p.DepositAmount,
		RemainingDue:  p.RemainingDue,
	}

	items := make([]models.ProposalLineItem, len(p.LineItems))
	copy(items, p.LineItems)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	for _, li := range items {
		doc.Lines = append(doc.Lines, Line{
			Name:        li.Name,
			Description: li.Description,
			Hours:       li.Hours,
			Quantity:    li.Quantity,
			LineTotal:   li.LineTotal,
		})
	}
	for _, ad := range p.AppliedDiscounts {
		doc.Discounts = append(doc.Discounts, AppliedDiscount{
			Name:          ad.Name,
			AmountApplied: ad.AmountApplied,
		})
	}
	return doc
}
