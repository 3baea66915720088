// Package notify is the outbound notification boundary. The proposal
// service receives a Messenger at construction time; delivery failures
// are the caller's to record, never to abort a transition over.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/beedevservices/portal/internal/models"
)

// Messenger delivers a proposal signing link to its recipients.
type Messenger interface {
	Send(ctx context.Context, proposal *models.Proposal, recipients []string, signingURL string) error
}

// LogMessenger is the default Messenger: it logs the would-be delivery.
// Production wires an SMTP/provider implementation in its place.
type LogMessenger struct {
	log *zap.Logger
}

// NewLogMessenger creates a log-only messenger.
func NewLogMessenger(log *zap.Logger) *LogMessenger {
	return &LogMessenger{log: log}
}

func (m *LogMessenger) Send(_ context.Context, proposal *models.Proposal, recipients []string, signingURL string) error {
	m.log.Info("proposal notification",
		zap.Uint("proposal_id", proposal.ID),
		zap.Strings("recipients", recipients),
		zap.String("signing_url", signingURL),
	)
	return nil
}
