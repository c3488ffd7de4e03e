// Package notify delivers enforcement notifications to listing owners and
// appends every attempt, delivered or not, to the audit log.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
)

// Disposition is the outcome of a single notification attempt
type Disposition string

const (
	DispositionSent    Disposition = "sent"
	DispositionFailed  Disposition = "failed"
	DispositionSkipped Disposition = "skipped"
)

// Sender delivers a rendered message to a recipient address. Both a
// plain-text and an HTML rendering of the same content are provided.
type Sender interface {
	Send(ctx context.Context, recipient, subject, textBody, htmlBody string) error
}

// OwnerSource looks up the owner record for a violation
type OwnerSource interface {
	GetByID(ctx context.Context, id string) (*models.Owner, error)
}

// ListingSource looks up the listing a violation refers to
type ListingSource interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
}

// AuditLog receives one entry per notification attempt
type AuditLog interface {
	Append(ctx context.Context, entry *models.NotificationLogEntry) error
}

// Dispatcher renders action-specific notifications and records the outcome
type Dispatcher struct {
	sender   Sender
	owners   OwnerSource
	listings ListingSource
	log      AuditLog
	from     string
	logger   *logging.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(sender Sender, owners OwnerSource, listings ListingSource, log AuditLog, from string, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, owners: owners, listings: listings, log: log, from: from, logger: logger}
}

// Notify sends the notification for one resolved violation. The audit entry
// is appended regardless of the delivery outcome; a failed or skipped send
// never fails the resolution it belongs to.
func (d *Dispatcher) Notify(ctx context.Context, violation *models.ViolationRecord, action models.Action, adminEmail string) (Disposition, error) {
	owner, err := d.owners.GetByID(ctx, violation.OwnerID)
	if err != nil {
		return DispositionFailed, fmt.Errorf("load owner %s: %w", violation.OwnerID, err)
	}

	recipient := ""
	if owner != nil {
		recipient = strings.TrimSpace(owner.Email)
	}
	if recipient == "" {
		d.appendLog(ctx, violation, action, recipient, false)
		d.logger.Warn("owner has no email address, skipping notification",
			logging.WithField("owner_id", violation.OwnerID),
			logging.WithField("listing_id", violation.ListingID))
		return DispositionSkipped, nil
	}

	// The message cites the listing content, not just its ID. A failed
	// lookup degrades to the reference-only rendering.
	listing, err := d.listings.Get(ctx, violation.ListingID)
	if err != nil {
		d.logger.Warn("failed to load listing for notification",
			logging.WithField("listing_id", violation.ListingID),
			logging.WithField("error", err.Error()))
		listing = nil
	}

	subject, text, html := renderMessage(listing, violation, action, adminEmail)
	if err := d.sender.Send(ctx, recipient, subject, text, html); err != nil {
		d.appendLog(ctx, violation, action, recipient, false)
		d.logger.Error("notification delivery failed",
			logging.WithField("recipient", recipient),
			logging.WithField("listing_id", violation.ListingID),
			logging.WithField("error", err.Error()))
		return DispositionFailed, nil
	}

	d.appendLog(ctx, violation, action, recipient, true)
	d.logger.Info("notification sent",
		logging.WithField("recipient", recipient),
		logging.WithField("action", action))
	return DispositionSent, nil
}

func (d *Dispatcher) appendLog(ctx context.Context, violation *models.ViolationRecord, action models.Action, recipient string, delivered bool) {
	err := d.log.Append(ctx, &models.NotificationLogEntry{
		ListingID:  violation.ListingID,
		OwnerID:    violation.OwnerID,
		ActionType: action,
		Recipient:  recipient,
		Delivered:  delivered,
	})
	if err != nil {
		d.logger.Error("failed to append notification log entry",
			logging.WithField("listing_id", violation.ListingID),
			logging.WithField("error", err.Error()))
	}
}
