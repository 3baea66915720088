// Package services implements the portal workflow: pricing drafts and
// their approval state machine, proposal snapshots and the signing
// lifecycle, and the invoice and project materializers. Every state
// transition runs inside a database transaction, and derived totals are
// recomputed synchronously in the same transaction as the triggering
// write, so a reader never observes stale amounts after a successful
// mutation returns.
package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beedevservices/portal/internal/models"
)

// lockForUpdate adds a FOR UPDATE row lock on dialects that support it.
// sqlite serializes writers on its own and rejects the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// newOpaqueToken returns a URL-safe token with 32 bytes of entropy,
// used for signing links and public invoice views.
func newOpaqueToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// appendEvent writes one append-only proposal audit trail entry. data, if
// non-nil, is JSON-encoded into the event payload.
func appendEvent(tx *gorm.DB, proposalID uint, kind models.ProposalEventKind, actorID *uint, ip string, data any) error {
	ev := models.ProposalEvent{
		ProposalID: proposalID,
		Kind:       kind,
		ActorID:    actorID,
		IPAddress:  ip,
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = string(b)
	}
	return tx.Create(&ev).Error
}

// writeAudit records a reference-data change. Audit rows are append-only
// and never consulted by workflow logic.
func writeAudit(tx *gorm.DB, userID uint, entityType string, entityID uint, action, field, oldVal, newVal string) error {
	return tx.Create(&models.AuditLog{
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Field:      field,
		OldValue:   oldVal,
		NewValue:   newVal,
	}).Error
}

// slugify lowercases and replaces every non-alphanumeric run with a
// single hyphen.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
