package campaign

// Stats is a derived snapshot of the queue, recomputed in full on every
// mutation. It is never authoritative: the queue is.
type Stats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Sent           int     `json:"sent"`
	Delivered      int     `json:"delivered"`
	Read           int     `json:"read"`
	Failed         int     `json:"failed"`
	Replied        int     `json:"replied"`
	NotInterested  int     `json:"not_interested"`
	MessagesSent   int     `json:"messages_sent"` // sent + delivered + read
	Responses      int     `json:"responses"`     // responses seen but not yet classified
	Errors         int     `json:"errors"`
	ReplyRate      float64 `json:"reply_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// RecomputeStats rebuilds the stats snapshot from the queue. O(queue) per
// mutation, acceptable because queues are bounded by target-audience size.
func (c *Campaign) RecomputeStats() {
	var s Stats
	responded := make(map[string]bool)
	classified := make(map[string]bool)
	for i := range c.Queue {
		it := &c.Queue[i]
		s.Total++
		switch it.Status {
		case ItemPending:
			s.Pending++
		case ItemSent:
			s.Sent++
		case ItemDelivered:
			s.Delivered++
		case ItemRead:
			s.Read++
		case ItemFailed:
			s.Failed++
		case ItemReplied:
			s.Replied++
			classified[it.ContactID] = true
		case ItemNotInterested:
			s.NotInterested++
			classified[it.ContactID] = true
		}
		if it.HasReceivedResponse {
			responded[it.ContactID] = true
		}
	}
	for contactID := range responded {
		if !classified[contactID] {
			s.Responses++
		}
	}
	s.MessagesSent = s.Sent + s.Delivered + s.Read
	s.Errors = s.Failed

	// Rates are relative to everything that ever went out, including items
	// that later moved on to a terminal outcome.
	delivered := s.MessagesSent + s.Replied + s.NotInterested
	if delivered > 0 {
		s.ReplyRate = float64(s.Replied+s.NotInterested+s.Responses) / float64(delivered)
		s.ConversionRate = float64(s.Replied+s.Responses) / float64(delivered)
	}
	c.Stats = s
}
