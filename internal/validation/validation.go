// Package validation collects field-level violations before a write.
// Handlers and services build a Violations map and surface it through
// apperr.ValidationError so callers always learn which field failed.
package validation

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Required flags blank strings.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Email performs a minimal shape check; deliverability is the mailer's
// problem.
func Email(field, value string, v Violations) {
	s := strings.TrimSpace(value)
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || !strings.Contains(s[at+1:], ".") {
		v[field] = "invalid_email"
	}
}

// PositiveAmount flags zero or negative money values.
func PositiveAmount(field string, val decimal.Decimal, v Violations) {
	if !val.GreaterThan(decimal.Zero) {
		v[field] = "must_be_positive"
	}
}

// NonNegativeAmount flags negative money values.
func NonNegativeAmount(field string, val decimal.Decimal, v Violations) {
	if val.LessThan(decimal.Zero) {
		v[field] = "must_not_be_negative"
	}
}

// PercentRange flags values outside 0-100.
func PercentRange(field string, val decimal.Decimal, v Violations) {
	if val.LessThan(decimal.Zero) || val.GreaterThan(decimal.NewFromInt(100)) {
		v[field] = "out_of_range"
	}
}
