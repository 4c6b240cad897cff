// Package events publishes security state changes for other chat services.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/secledger/internal/logging"
)

const (
	DeviceRegistered = "device.registered"
	FaceIDEnrolled   = "faceid.enrolled"
	FaceIDRemoved    = "faceid.removed"
	BuddyRequested   = "buddy.requested"
	BuddyPaired      = "buddy.paired"
	BuddyDeclined    = "buddy.declined"
	BuddyUnpaired    = "buddy.unpaired"
	TwoFactorSetup   = "2fa.setup"
	TwoFactorEnabled = "2fa.enabled"
	TwoFactorOff     = "2fa.disabled"
)

// Event is the JSON body of a published message. Type doubles as the
// routing key. Secrets and biometric data are never part of an event.
type Event struct {
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	Peer       string    `json:"peer,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher records events in the log only. It is used when no broker is
// configured.
type LogPublisher struct {
	logger logging.Logger
}

func NewLogPublisher(logger logging.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("module", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.Info(ctx, "security event", "type", e.Type, "username", e.Username, "peer", e.Peer)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
