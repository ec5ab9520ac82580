package engine

import (
	"context"
	"fmt"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/contacts"
)

// EventKind classifies an inbound event for a contact
type EventKind string

const (
	EventReply         EventKind = "reply"
	EventNotInterested EventKind = "not_interested"
)

// ReportInboundEvent applies an inbound reply or a not-interested outcome
// to a contact's queue items and unconditionally cancels the contact's
// still-pending follow-ups, regardless of any step's condition. The
// cancellation is destructive: follow-up items are deleted, not flagged.
func (e *Engine) ReportInboundEvent(ctx context.Context, campaignID, contactID string, kind EventKind) error {
	var status campaign.ItemStatus
	var contactStatus string
	switch kind {
	case EventReply:
		status = campaign.ItemReplied
		contactStatus = contacts.StatusReplied
	case EventNotInterested:
		status = campaign.ItemNotInterested
		contactStatus = contacts.StatusNotInterested
	default:
		return fmt.Errorf("unknown inbound event kind %q", kind)
	}

	cancelled := 0
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		now := e.now()
		if it := c.MarkOutcome(contactID, status, -1, now); it == nil {
			// Nothing sent yet for this contact: still record the response
			// so no_response-gated follow-ups stay suppressed.
			e.logger.Warn("inbound event for contact with no sent item",
				"campaign_id", campaignID, "contact_id", contactID, "kind", kind)
			c.MarkResponseReceived(contactID, now)
		}
		cancelled = c.CancelFollowUps(contactID)
		c.RecomputeStats()
		return nil
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RepliesTotal.WithLabelValues(campaignID, string(kind)).Inc()
		if cancelled > 0 {
			e.metrics.FollowUpsCancelledTotal.WithLabelValues(campaignID).Add(float64(cancelled))
		}
	}
	e.logger.Info("inbound event reconciled",
		"campaign_id", campaignID, "contact_id", contactID,
		"kind", kind, "followups_cancelled", cancelled)

	// Best-effort contact status, skipped for won/lost relationships
	ct, err := e.contacts.Get(ctx, contactID)
	if err != nil {
		e.logger.Warn("contact lookup failed on inbound event",
			"contact_id", contactID, "error", err)
		return nil
	}
	if !ct.Terminal() {
		if err := e.contacts.SetStatus(ctx, contactID, contactStatus); err != nil {
			e.logger.Warn("contact status update failed",
				"contact_id", contactID, "status", contactStatus, "error", err)
		}
	}
	return nil
}

// MarkResponseReceived records a passive "saw a reply, not yet classified"
// event: every item of the contact gets the response flag without a status
// change, so later no_response-gated follow-ups are correctly suppressed
// before a human classifies the reply. Follow-ups are NOT cancelled here.
func (e *Engine) MarkResponseReceived(ctx context.Context, campaignID, contactID string) error {
	touched := 0
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		touched = c.MarkResponseReceived(contactID, e.now())
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("response recorded",
		"campaign_id", campaignID, "contact_id", contactID, "items", touched)
	return nil
}

// ReportDeliveryReceipt applies an advisory delivered/read receipt from the
// gateway to the item carrying the transport message id. Unknown message
// ids degrade to a warning.
func (e *Engine) ReportDeliveryReceipt(ctx context.Context, campaignID, messageID string, status campaign.ItemStatus) error {
	if status != campaign.ItemDelivered && status != campaign.ItemRead {
		return fmt.Errorf("unsupported receipt status %q", status)
	}
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		if it := c.MarkReceipt(messageID, status, e.now()); it == nil {
			e.logger.Warn("receipt for unknown message",
				"campaign_id", campaignID, "message_id", messageID, "status", status)
		}
		return nil
	})
	return err
}
