package engine

import (
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/contacts"
	"github.com/ptrelli/wadrip/internal/template"
)

// scheduleFollowUps enqueues the configured follow-up chain for a contact
// after a successful primary send. Invoked inside the same aggregate
// mutation as MarkSent. The idempotency guard absorbs duplicate triggers
// (e.g. a retried webhook delivering the same send result twice): if any
// follow-up item already exists for the contact, nothing is created.
func (e *Engine) scheduleFollowUps(c *campaign.Campaign, ct *contacts.Contact, contactID, phone string, sentAt time.Time) int {
	if len(c.MessageSequences) == 0 {
		return 0
	}
	if c.HasFollowUps(contactID) {
		return 0
	}

	vars := e.templateVars(ct, c.Sender)
	created := 0
	for i := range c.MessageSequences {
		step := &c.MessageSequences[i]
		if !step.IsActive {
			continue
		}
		due := sentAt.Add(time.Duration(step.DelayMinutes) * time.Minute)
		// Attachments stay referenced by the step; queue items carry only
		// the compiled text.
		added := c.AddPending(campaign.QueueItem{
			ContactID:            contactID,
			PhoneNumber:          phone,
			CompiledMessage:      template.Compile(step.MessageTemplate, vars),
			SequenceID:           step.ID,
			SequenceIndex:        i + 1,
			FollowUpScheduledFor: &due,
			Condition:            step.Condition,
			CreatedAt:            sentAt,
			UpdatedAt:            sentAt,
		})
		if added {
			created++
		}
	}
	return created
}
