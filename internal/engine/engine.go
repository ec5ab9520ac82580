// Package engine implements the outbound campaign delivery engine: the
// per-contact per-step queue state machine, follow-up scheduling, dispatch
// selection and response reconciliation. All operations are synchronous
// with respect to a single campaign aggregate; campaigns are independent
// and may be processed concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/contacts"
	"github.com/ptrelli/wadrip/internal/metrics"
	"github.com/ptrelli/wadrip/internal/store"
	"github.com/ptrelli/wadrip/internal/template"
)

// ErrInvalidTransition is returned for lifecycle operations that are not
// valid from the campaign's current status
var ErrInvalidTransition = errors.New("invalid campaign status transition")

// Engine drives campaign queues against the store and the contact
// directory. The transport is not called here: the dispatch driver pulls
// batches, sends, and reports results back.
type Engine struct {
	store    *store.Store
	contacts contacts.Directory
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an engine. metrics may be nil when disabled.
func New(st *store.Store, dir contacts.Directory, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:    st,
		contacts: dir,
		logger:   logger.With("component", "engine"),
		metrics:  m,
		now:      time.Now,
	}
}

// Create validates and persists a new campaign in draft status
func (e *Engine) Create(ctx context.Context, c *campaign.Campaign) error {
	if c.Status == "" {
		c.Status = campaign.StatusDraft
	}
	if c.Status != campaign.StatusDraft && c.Status != campaign.StatusScheduled {
		return fmt.Errorf("%w: new campaigns must be draft or scheduled", ErrInvalidTransition)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.CreatedAt = e.now()
	c.UpdatedAt = c.CreatedAt
	c.RecomputeStats()
	return e.store.Put(c)
}

// Start transitions a draft or scheduled campaign to running and seeds the
// queue with one primary item per target contact. Contacts that cannot be
// loaded are skipped with a warning; one bad contact never blocks the rest.
func (e *Engine) Start(ctx context.Context, id string) (*campaign.Campaign, error) {
	c0, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !c0.CanStart() {
		return nil, fmt.Errorf("%w: cannot start campaign in status %s", ErrInvalidTransition, c0.Status)
	}

	// Contact lookups and template rendering happen outside the write
	// transaction; the status precondition is re-checked inside it.
	now := e.now()
	items := make([]campaign.QueueItem, 0, len(c0.ContactIDs))
	for _, contactID := range c0.ContactIDs {
		ct, err := e.contacts.Get(ctx, contactID)
		if err != nil {
			e.logger.Warn("skipping contact at campaign start",
				"campaign_id", id, "contact_id", contactID, "error", err)
			continue
		}
		items = append(items, campaign.QueueItem{
			ContactID:       contactID,
			PhoneNumber:     ct.Phone,
			CompiledMessage: template.Compile(c0.MessageTemplate, e.templateVars(ct, c0.Sender)),
			SequenceID:      campaign.SequenceMain,
			SequenceIndex:   0,
			Condition:       campaign.ConditionAlways,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return e.store.Update(id, func(c *campaign.Campaign) error {
		if !c.CanStart() {
			return fmt.Errorf("%w: cannot start campaign in status %s", ErrInvalidTransition, c.Status)
		}
		for _, it := range items {
			c.AddPending(it)
		}
		c.Status = campaign.StatusRunning
		startedAt := e.now()
		c.StartedAt = &startedAt
		c.RecomputeStats()
		e.logger.Info("campaign started", "campaign_id", id, "contacts", len(items))
		return nil
	})
}

// Pause freezes dispatch without touching queue state
func (e *Engine) Pause(ctx context.Context, id string) (*campaign.Campaign, error) {
	return e.transition(id, campaign.StatusPaused, campaign.StatusRunning)
}

// Resume restarts polling for a paused campaign. Eligibility checks do the
// catch-up; there is no replay burst logic.
func (e *Engine) Resume(ctx context.Context, id string) (*campaign.Campaign, error) {
	return e.transition(id, campaign.StatusRunning, campaign.StatusPaused)
}

// Cancel stops future dispatch for good. Already-sent items are untouched.
func (e *Engine) Cancel(ctx context.Context, id string) (*campaign.Campaign, error) {
	return e.transition(id, campaign.StatusCancelled,
		campaign.StatusDraft, campaign.StatusScheduled, campaign.StatusRunning, campaign.StatusPaused)
}

func (e *Engine) transition(id string, to campaign.Status, from ...campaign.Status) (*campaign.Campaign, error) {
	return e.store.Update(id, func(c *campaign.Campaign) error {
		for _, s := range from {
			if c.Status == s {
				c.Status = to
				e.logger.Info("campaign status changed", "campaign_id", id, "from", s, "to", to)
				return nil
			}
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	})
}

// SendOutcome is the transport's verdict for one attempted send
type SendOutcome struct {
	MessageID string
	Error     string
}

// ReportSendResult is the transport callback: it routes to the sent or
// failed transition for the pending item at (contact, seqIndex). A negative
// seqIndex targets the contact's first pending item.
func (e *Engine) ReportSendResult(ctx context.Context, campaignID, contactID string, seqIndex int, out SendOutcome) error {
	if out.Error != "" {
		return e.markFailed(ctx, campaignID, contactID, seqIndex, out.Error)
	}
	return e.markSent(ctx, campaignID, contactID, seqIndex, out.MessageID)
}

func (e *Engine) markSent(ctx context.Context, campaignID, contactID string, seqIndex int, messageID string) error {
	// The contact feeds follow-up template variables and the best-effort
	// status side effect. A lookup failure degrades to empty variables.
	ct, err := e.contacts.Get(ctx, contactID)
	if err != nil {
		e.logger.Warn("contact lookup failed on send result",
			"campaign_id", campaignID, "contact_id", contactID, "error", err)
	}

	var (
		sentItem  *campaign.QueueItem
		scheduled int
	)
	_, err = e.store.Update(campaignID, func(c *campaign.Campaign) error {
		now := e.now()
		it := c.MarkSent(contactID, messageID, seqIndex, now)
		if it == nil {
			e.logger.Warn("no pending item for send result",
				"campaign_id", campaignID, "contact_id", contactID, "sequence_index", seqIndex)
			return nil
		}
		sentItem = it
		if it.SequenceIndex == 0 {
			scheduled = e.scheduleFollowUps(c, ct, contactID, it.PhoneNumber, now)
			c.RecomputeStats()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if sentItem == nil {
		return nil
	}

	if e.metrics != nil {
		e.metrics.MessagesSentTotal.WithLabelValues(campaignID, sentItem.SequenceID).Inc()
		if scheduled > 0 {
			e.metrics.FollowUpsScheduledTotal.WithLabelValues(campaignID).Add(float64(scheduled))
		}
	}
	e.logger.Info("message sent",
		"campaign_id", campaignID, "contact_id", contactID,
		"sequence_id", sentItem.SequenceID, "message_id", messageID,
		"followups_scheduled", scheduled)

	// Cross-aggregate side effect: first contact of the campaign marks the
	// CRM contact as contacted. Best-effort: never fails the send ack.
	if sentItem.SequenceIndex == 0 && ct != nil && !ct.Terminal() {
		if err := e.contacts.SetStatus(ctx, contactID, contacts.StatusContacted); err != nil {
			e.logger.Warn("contact status update failed",
				"contact_id", contactID, "status", contacts.StatusContacted, "error", err)
		}
	}
	return nil
}

func (e *Engine) markFailed(ctx context.Context, campaignID, contactID string, seqIndex int, errMsg string) error {
	var failed *campaign.QueueItem
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		it := c.MarkFailed(contactID, errMsg, seqIndex, e.now())
		if it == nil {
			e.logger.Warn("no pending item for failure report",
				"campaign_id", campaignID, "contact_id", contactID, "sequence_index", seqIndex)
			return nil
		}
		failed = it
		return nil
	})
	if err != nil {
		return err
	}
	if failed == nil {
		return nil
	}

	if e.metrics != nil {
		e.metrics.MessagesFailedTotal.WithLabelValues(campaignID).Inc()
	}
	e.logger.Warn("message failed",
		"campaign_id", campaignID, "contact_id", contactID,
		"retry_count", failed.RetryCount, "error", errMsg)
	return nil
}

// RequeueRetryable flips failed items with remaining retry budget back to
// pending. Invoked by the dispatch driver; the engine itself never retries.
func (e *Engine) RequeueRetryable(ctx context.Context, campaignID string) (int, error) {
	requeued := 0
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		requeued = c.RequeueFailed(e.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		e.logger.Info("requeued failed items", "campaign_id", campaignID, "count", requeued)
	}
	return requeued, nil
}

// FinalizeIfDrained completes a running campaign whose queue has no pending
// items left. Returns true when the transition happened.
func (e *Engine) FinalizeIfDrained(ctx context.Context, campaignID string) (bool, error) {
	done := false
	_, err := e.store.Update(campaignID, func(c *campaign.Campaign) error {
		if c.Status != campaign.StatusRunning || c.PendingCount() > 0 {
			return nil
		}
		c.Status = campaign.StatusCompleted
		completedAt := e.now()
		c.CompletedAt = &completedAt
		done = true
		e.logger.Info("campaign completed", "campaign_id", campaignID,
			"sent", c.Stats.MessagesSent, "failed", c.Stats.Failed,
			"replied", c.Stats.Replied)
		return nil
	})
	return done, err
}

// templateVars builds the variable map for one contact: fixed contact and
// sender attributes first, the contact's free-form properties merged last.
// Dynamic keys may shadow fixed ones; that is accepted behavior.
func (e *Engine) templateVars(ct *contacts.Contact, sender campaign.Sender) map[string]string {
	fixed := map[string]string{
		"user":       sender.Name,
		"department": sender.Department,
	}
	if ct == nil {
		return fixed
	}
	fixed["name"] = ct.Name
	fixed["email"] = ct.Email
	fixed["phone"] = ct.Phone
	return template.Merge(fixed, ct.Properties)
}
