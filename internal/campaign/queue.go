package campaign

import (
	"time"
)

// ItemStatus represents the delivery state of a queue item
type ItemStatus string

const (
	ItemPending       ItemStatus = "pending"
	ItemSent          ItemStatus = "sent"
	ItemDelivered     ItemStatus = "delivered"
	ItemRead          ItemStatus = "read"
	ItemFailed        ItemStatus = "failed"
	ItemReplied       ItemStatus = "replied"
	ItemNotInterested ItemStatus = "not_interested"
)

// QueueItem is one scheduled message instance for one contact at one
// sequence step. SequenceIndex 0 is the primary send, 1..N the follow-ups.
type QueueItem struct {
	ContactID            string     `json:"contact_id"`
	PhoneNumber          string     `json:"phone_number"`
	CompiledMessage      string     `json:"compiled_message"`
	Status               ItemStatus `json:"status"`
	SequenceID           string     `json:"sequence_id"`
	SequenceIndex        int        `json:"sequence_index"`
	ScheduledAt          *time.Time `json:"scheduled_at,omitempty"`
	FollowUpScheduledFor *time.Time `json:"follow_up_scheduled_for,omitempty"`
	HasReceivedResponse  bool       `json:"has_received_response"`
	ResponseReceivedAt   *time.Time `json:"response_received_at,omitempty"`
	Condition            Condition  `json:"condition,omitempty"`
	RetryCount           int        `json:"retry_count"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	MessageID            string     `json:"message_id,omitempty"`
	SentAt               *time.Time `json:"sent_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	ReadAt               *time.Time `json:"read_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Sendable reports whether the item counts as having gone out
func (q *QueueItem) Sendable() bool {
	return q.Status == ItemSent || q.Status == ItemDelivered || q.Status == ItemRead
}

type pendingKey struct {
	contactID string
	seqIndex  int
}

// Reindex rebuilds the pending-item index from the queue. Must be called
// after loading a campaign from storage.
func (c *Campaign) Reindex() {
	c.pending = make(map[pendingKey]int, len(c.Queue))
	for i := range c.Queue {
		if c.Queue[i].Status == ItemPending {
			c.pending[pendingKey{c.Queue[i].ContactID, c.Queue[i].SequenceIndex}] = i
		}
	}
}

func (c *Campaign) ensureIndex() {
	if c.pending == nil {
		c.Reindex()
	}
}

// AddPending appends a new pending item unless one already exists for the
// same (contact, sequence index) pair. This is the single insertion point
// for pending items; it keeps the dedup invariant structural.
func (c *Campaign) AddPending(item QueueItem) bool {
	c.ensureIndex()
	key := pendingKey{item.ContactID, item.SequenceIndex}
	if _, exists := c.pending[key]; exists {
		return false
	}
	item.Status = ItemPending
	c.Queue = append(c.Queue, item)
	c.pending[key] = len(c.Queue) - 1
	return true
}

// FindPending returns the unique pending item for (contact, sequence index),
// or nil. A negative index falls back to the first pending item for the
// contact, for callers that do not yet know the sequence position.
func (c *Campaign) FindPending(contactID string, seqIndex int) *QueueItem {
	c.ensureIndex()
	if seqIndex >= 0 {
		if i, ok := c.pending[pendingKey{contactID, seqIndex}]; ok {
			return &c.Queue[i]
		}
		return nil
	}
	for i := range c.Queue {
		if c.Queue[i].ContactID == contactID && c.Queue[i].Status == ItemPending {
			return &c.Queue[i]
		}
	}
	return nil
}

// settle removes an item from the pending index after its status changed
func (c *Campaign) settle(item *QueueItem) {
	c.ensureIndex()
	key := pendingKey{item.ContactID, item.SequenceIndex}
	delete(c.pending, key)
}

// HasFollowUps reports whether any follow-up item (whatever its status)
// already exists for the contact. Used as the idempotency guard before
// scheduling a follow-up chain.
func (c *Campaign) HasFollowUps(contactID string) bool {
	for i := range c.Queue {
		if c.Queue[i].ContactID == contactID && c.Queue[i].SequenceIndex > 0 {
			return true
		}
	}
	return false
}

// CancelFollowUps deletes every pending follow-up item for the contact.
// The cancellation is destructive: the items are removed outright, not
// soft-cancelled. Returns the number of items removed.
func (c *Campaign) CancelFollowUps(contactID string) int {
	removed := 0
	kept := c.Queue[:0]
	for i := range c.Queue {
		it := c.Queue[i]
		if it.ContactID == contactID && it.SequenceIndex > 0 && it.Status == ItemPending {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	c.Queue = kept
	if removed > 0 {
		c.Reindex()
		c.RecomputeStats()
	}
	return removed
}

// MarkSent transitions the pending item for (contact, seqIndex) to sent and
// records the transport message id. Returns the item, or nil when no
// matching pending item exists (the caller degrades to a warning).
func (c *Campaign) MarkSent(contactID, messageID string, seqIndex int, now time.Time) *QueueItem {
	it := c.FindPending(contactID, seqIndex)
	if it == nil {
		return nil
	}
	it.Status = ItemSent
	it.MessageID = messageID
	it.SentAt = &now
	it.UpdatedAt = now
	c.settle(it)
	c.RecomputeStats()
	return it
}

// MarkFailed transitions the pending item to failed, stores the error text
// and bumps the retry counter. Retry re-submission is the driver's call.
func (c *Campaign) MarkFailed(contactID, errMsg string, seqIndex int, now time.Time) *QueueItem {
	it := c.FindPending(contactID, seqIndex)
	if it == nil {
		return nil
	}
	it.Status = ItemFailed
	it.ErrorMessage = errMsg
	it.RetryCount++
	it.UpdatedAt = now
	c.settle(it)
	c.RecomputeStats()
	return it
}

// MarkOutcome applies a terminal reply/not-interested outcome to the
// contact's most advanced sent item (or, with seqIndex >= 0, to the item at
// that position). Pending follow-ups are left to CancelFollowUps.
func (c *Campaign) MarkOutcome(contactID string, status ItemStatus, seqIndex int, now time.Time) *QueueItem {
	var target *QueueItem
	for i := range c.Queue {
		it := &c.Queue[i]
		if it.ContactID != contactID {
			continue
		}
		if seqIndex >= 0 {
			if it.SequenceIndex == seqIndex {
				target = it
				break
			}
			continue
		}
		if it.Sendable() {
			target = it
		}
	}
	if target == nil {
		return nil
	}
	if target.Status == ItemPending {
		c.settle(target)
	}
	target.Status = status
	target.HasReceivedResponse = true
	target.ResponseReceivedAt = &now
	target.UpdatedAt = now
	c.MarkResponseReceived(contactID, now)
	return target
}

// MarkResponseReceived flags every item of the contact as having seen a
// response, without changing statuses. Later no_response-gated follow-ups
// are suppressed even before the reply is classified.
func (c *Campaign) MarkResponseReceived(contactID string, now time.Time) int {
	touched := 0
	for i := range c.Queue {
		it := &c.Queue[i]
		if it.ContactID != contactID || it.HasReceivedResponse {
			continue
		}
		it.HasReceivedResponse = true
		it.ResponseReceivedAt = &now
		it.UpdatedAt = now
		touched++
	}
	c.RecomputeStats()
	return touched
}

// MarkReceipt applies an advisory delivery receipt (sent -> delivered ->
// read) to the item carrying the given transport message id. Receipts never
// move an item backwards.
func (c *Campaign) MarkReceipt(messageID string, status ItemStatus, now time.Time) *QueueItem {
	for i := range c.Queue {
		it := &c.Queue[i]
		if it.MessageID != messageID {
			continue
		}
		switch status {
		case ItemDelivered:
			if it.Status != ItemSent {
				return it
			}
			it.Status = ItemDelivered
			it.DeliveredAt = &now
		case ItemRead:
			if it.Status != ItemSent && it.Status != ItemDelivered {
				return it
			}
			if it.DeliveredAt == nil {
				it.DeliveredAt = &now
			}
			it.Status = ItemRead
			it.ReadAt = &now
		default:
			return it
		}
		it.UpdatedAt = now
		c.RecomputeStats()
		return it
	}
	return nil
}

// RequeueFailed flips failed items that still have retry budget back to
// pending. Returns the number of items requeued. The pending index guard
// keeps a retry from colliding with an already-pending duplicate.
func (c *Campaign) RequeueFailed(now time.Time) int {
	c.ensureIndex()
	requeued := 0
	for i := range c.Queue {
		it := &c.Queue[i]
		if it.Status != ItemFailed || it.RetryCount >= c.MaxRetries {
			continue
		}
		key := pendingKey{it.ContactID, it.SequenceIndex}
		if _, exists := c.pending[key]; exists {
			continue
		}
		it.Status = ItemPending
		it.UpdatedAt = now
		c.pending[key] = i
		requeued++
	}
	if requeued > 0 {
		c.RecomputeStats()
	}
	return requeued
}

// PendingCount returns the number of pending items
func (c *Campaign) PendingCount() int {
	n := 0
	for i := range c.Queue {
		if c.Queue[i].Status == ItemPending {
			n++
		}
	}
	return n
}
