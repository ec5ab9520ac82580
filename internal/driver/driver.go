// Package driver runs the dispatch loop: it polls running campaigns on an
// interval, pulls eligible batches from the engine, pushes them through the
// per-session transport client and reports results back.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/metrics"
	"github.com/ptrelli/wadrip/internal/store"
	"github.com/ptrelli/wadrip/internal/transport"
)

// Config contains dispatch driver settings
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	SendTimeout  time.Duration
}

// Driver polls running campaigns and dispatches their eligible queue items
type Driver struct {
	engine   *engine.Engine
	store    *store.Store
	registry *transport.Registry
	metrics  *metrics.Metrics
	cfg      Config
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a dispatch driver. metrics may be nil when disabled.
func New(e *engine.Engine, st *store.Store, reg *transport.Registry, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	return &Driver{
		engine:   e,
		store:    st,
		registry: reg,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With("component", "driver"),
		stopCh:   make(chan struct{}),
	}
}

// Start starts the polling loop
func (d *Driver) Start(ctx context.Context) {
	d.logger.Info("starting dispatch driver",
		"poll_interval", d.cfg.PollInterval,
		"batch_size", d.cfg.BatchSize,
		"concurrency", d.cfg.Concurrency)

	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop stops the driver gracefully. In-flight sends finish first.
func (d *Driver) Stop() {
	d.logger.Info("stopping dispatch driver")
	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info("dispatch driver stopped")
}

func (d *Driver) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick processes every running campaign once. Campaigns are independent
// aggregates, so they are handled concurrently up to the configured limit.
func (d *Driver) tick(ctx context.Context) {
	running, err := d.store.ListByStatus(campaign.StatusRunning)
	if err != nil {
		d.logger.Error("failed to list running campaigns", "error", err)
		return
	}

	if d.metrics != nil {
		pending := 0
		for _, c := range running {
			pending += c.PendingCount()
		}
		d.metrics.CampaignsRunning.Set(float64(len(running)))
		d.metrics.QueuePending.Set(float64(pending))
	}

	if len(running) == 0 {
		return
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, c := range running {
		wg.Add(1)
		sem <- struct{}{}
		go func(c *campaign.Campaign) {
			defer wg.Done()
			defer func() { <-sem }()
			d.processCampaign(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (d *Driver) processCampaign(ctx context.Context, c *campaign.Campaign) {
	logger := d.logger.With("campaign_id", c.ID)

	// Exhaustible failures re-enter the queue before batch selection
	if _, err := d.engine.RequeueRetryable(ctx, c.ID); err != nil {
		logger.Error("requeue failed", "error", err)
		return
	}

	batch, err := d.engine.DispatchTick(ctx, c.ID, time.Now(), d.cfg.BatchSize)
	if err != nil {
		logger.Error("dispatch selection failed", "error", err)
		return
	}
	if len(batch) == 0 {
		if done, err := d.engine.FinalizeIfDrained(ctx, c.ID); err != nil {
			logger.Error("finalize check failed", "error", err)
		} else if done {
			logger.Info("campaign drained")
		}
		return
	}

	client, err := d.registry.Get(c.SessionName)
	if err != nil {
		logger.Warn("no transport session, skipping campaign",
			"session", c.SessionName, "error", err)
		return
	}

	logger.Debug("dispatching batch", "items", len(batch))
	for _, it := range batch {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		default:
		}
		d.sendItem(ctx, c, client, it)
	}
}

func (d *Driver) sendItem(ctx context.Context, c *campaign.Campaign, client transport.Client, it campaign.QueueItem) {
	msg := &transport.Message{
		To:   it.PhoneNumber,
		Body: it.CompiledMessage,
	}
	// Follow-up attachments live on the step, not on the queue item
	if it.SequenceIndex > 0 {
		if step := c.StepByID(it.SequenceID); step != nil {
			msg.Attachment = step.Attachment
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	res, err := client.Send(sendCtx, msg)
	cancel()

	out := engine.SendOutcome{}
	if err != nil {
		out.Error = err.Error()
	} else {
		out.MessageID = res.MessageID
	}

	if err := d.engine.ReportSendResult(ctx, c.ID, it.ContactID, it.SequenceIndex, out); err != nil {
		d.logger.Error("failed to record send result",
			"campaign_id", c.ID, "contact_id", it.ContactID, "error", err)
	}
}
