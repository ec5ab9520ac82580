package engine

import (
	"context"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/timeframe"
)

// DispatchTick selects the next batch of queue items eligible to send right
// now. It returns nothing for campaigns that are not running or are outside
// their sending window, regardless of queue contents. Selection is
// read-only: items move out of pending only when the driver reports a
// result.
func (e *Engine) DispatchTick(ctx context.Context, campaignID string, now time.Time, limit int) ([]campaign.QueueItem, error) {
	c, err := e.store.Get(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != campaign.StatusRunning {
		return nil, nil
	}
	if !timeframe.Within(now, c.Schedule) {
		return nil, nil
	}

	batch := nextBatch(c, now, limit)
	if e.metrics != nil {
		e.metrics.DispatchBatchSize.Observe(float64(len(batch)))
	}
	return batch, nil
}

// nextBatch partitions pending items into follow-ups and primaries and
// concatenates eligible follow-ups first. Follow-up timing is anchored to a
// past send and accumulates absolute skew when delayed, so follow-ups take
// priority over primaries, which have no deadline pressure.
func nextBatch(c *campaign.Campaign, now time.Time, limit int) []campaign.QueueItem {
	var followUps, primaries []campaign.QueueItem
	for i := range c.Queue {
		it := c.Queue[i]
		if it.Status != campaign.ItemPending {
			continue
		}
		if it.SequenceIndex > 0 {
			if it.FollowUpScheduledFor == nil || it.FollowUpScheduledFor.After(now) {
				continue
			}
			if it.Condition != campaign.ConditionAlways && it.HasReceivedResponse {
				continue
			}
			followUps = append(followUps, it)
		} else {
			if it.ScheduledAt != nil && it.ScheduledAt.After(now) {
				continue
			}
			primaries = append(primaries, it)
		}
	}

	batch := append(followUps, primaries...)
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}
	return batch
}
