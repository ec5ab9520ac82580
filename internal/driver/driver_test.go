package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/contacts"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/store"
	"github.com/ptrelli/wadrip/internal/transport"
)

type stubClient struct {
	mu    sync.Mutex
	sent  []*transport.Message
	fails int // fail the first N sends
	seq   int
}

func (c *stubClient) Send(ctx context.Context, msg *transport.Message) (*transport.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fails > 0 {
		c.fails--
		return nil, errors.New("gateway timeout")
	}
	c.sent = append(c.sent, msg)
	c.seq++
	return &transport.SendResult{MessageID: fmt.Sprintf("wamid.%d", c.seq)}, nil
}

func (c *stubClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type stubDirectory struct {
	contacts map[string]*contacts.Contact
}

func (d *stubDirectory) Get(ctx context.Context, id string) (*contacts.Contact, error) {
	c, ok := d.contacts[id]
	if !ok {
		return nil, contacts.ErrNotFound
	}
	return c, nil
}

func (d *stubDirectory) SetStatus(ctx context.Context, id, status string) error { return nil }

func setupDriver(t *testing.T, client transport.Client) (*Driver, *engine.Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "campaigns.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dir := &stubDirectory{contacts: map[string]*contacts.Contact{
		"c1": {ID: "c1", Name: "Mario", Phone: "+391", Status: contacts.StatusNew},
		"c2": {ID: "c2", Name: "Anna", Phone: "+392", Status: contacts.StatusNew},
	}}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	e := engine.New(st, dir, logger, nil)

	reg := transport.NewRegistry()
	if client != nil {
		reg.Register("sales", client)
	}

	d := New(e, st, reg, nil, Config{
		PollInterval: 50 * time.Millisecond,
		BatchSize:    10,
		Concurrency:  2,
		SendTimeout:  time.Second,
	}, logger)
	return d, e, st
}

func startedCampaign(t *testing.T, e *engine.Engine, maxRetries int) string {
	t.Helper()
	c := &campaign.Campaign{
		ID:              "camp-1",
		Name:            "promo",
		MessageTemplate: "Ciao {name}",
		SessionName:     "sales",
		ContactIDs:      []string{"c1", "c2"},
		MaxRetries:      maxRetries,
	}
	ctx := context.Background()
	if err := e.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Start(ctx, c.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c.ID
}

func TestTickSendsPendingBatch(t *testing.T) {
	client := &stubClient{}
	d, e, st := setupDriver(t, client)
	id := startedCampaign(t, e, 0)

	d.tick(context.Background())

	if client.sentCount() != 2 {
		t.Fatalf("sent %d messages, want 2", client.sentCount())
	}
	c, _ := st.Get(id)
	if c.Stats.MessagesSent != 2 || c.Stats.Pending != 0 {
		t.Errorf("unexpected stats after tick: %+v", c.Stats)
	}
	for _, it := range c.Queue {
		if it.MessageID == "" {
			t.Errorf("item without transport message id: %+v", it)
		}
	}
}

func TestTickRetriesThenGivesUp(t *testing.T) {
	client := &stubClient{fails: 10}
	d, e, st := setupDriver(t, client)
	id := startedCampaign(t, e, 2)
	ctx := context.Background()

	d.tick(ctx) // both fail, retry_count 1
	d.tick(ctx) // requeued once, fail again, budget exhausted
	d.tick(ctx) // nothing left to requeue

	c, _ := st.Get(id)
	for _, it := range c.Queue {
		if it.Status != campaign.ItemFailed {
			t.Errorf("item not failed: %+v", it)
		}
		if it.RetryCount != 2 {
			t.Errorf("retry_count = %d, want 2", it.RetryCount)
		}
	}
	if client.sentCount() != 0 {
		t.Errorf("stub delivered %d messages", client.sentCount())
	}
}

func TestTickRecoversAfterTransientFailure(t *testing.T) {
	client := &stubClient{fails: 2}
	d, e, st := setupDriver(t, client)
	id := startedCampaign(t, e, 3)
	ctx := context.Background()

	d.tick(ctx) // both sends fail
	d.tick(ctx) // requeued, both succeed

	c, _ := st.Get(id)
	if c.Stats.MessagesSent != 2 {
		t.Errorf("stats.MessagesSent = %d, want 2", c.Stats.MessagesSent)
	}
}

func TestTickSkipsCampaignWithoutSession(t *testing.T) {
	d, e, st := setupDriver(t, nil) // empty registry
	id := startedCampaign(t, e, 0)

	d.tick(context.Background())

	c, _ := st.Get(id)
	if c.Stats.Pending != 2 {
		t.Errorf("items consumed without a transport session: %+v", c.Stats)
	}
	if c.Status != campaign.StatusRunning {
		t.Errorf("status changed to %s", c.Status)
	}
}

func TestTickFinalizesDrainedCampaign(t *testing.T) {
	client := &stubClient{}
	d, e, st := setupDriver(t, client)
	id := startedCampaign(t, e, 0)
	ctx := context.Background()

	d.tick(ctx) // sends everything
	d.tick(ctx) // empty batch, finalizes

	c, _ := st.Get(id)
	if c.Status != campaign.StatusCompleted {
		t.Errorf("status = %s, want completed", c.Status)
	}
}

func TestStartStop(t *testing.T) {
	client := &stubClient{}
	d, e, _ := setupDriver(t, client)
	startedCampaign(t, e, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)

	deadline := time.After(2 * time.Second)
	for client.sentCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("driver sent %d messages before deadline", client.sentCount())
		case <-time.After(20 * time.Millisecond):
		}
	}

	d.Stop() // must not hang
}
