package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "campaigns.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCampaign(id string) *campaign.Campaign {
	return &campaign.Campaign{
		ID:              id,
		Name:            "spring promo",
		Status:          campaign.StatusDraft,
		MessageTemplate: "Ciao {name}",
		SessionName:     "sales",
		ContactIDs:      []string{"c1", "c2"},
		MaxRetries:      3,
		CreatedAt:       time.Now(),
	}
}

func TestPutGet(t *testing.T) {
	s := setupTestStore(t)

	c := testCampaign("camp-1")
	if err := s.Put(c); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("camp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "spring promo" || got.Status != campaign.StatusDraft {
		t.Errorf("unexpected campaign: %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Put(testCampaign("camp-1")); err != nil {
		t.Fatal(err)
	}

	updated, err := s.Update("camp-1", func(c *campaign.Campaign) error {
		c.Status = campaign.StatusRunning
		ok := c.AddPending(campaign.QueueItem{
			ContactID:     "c1",
			PhoneNumber:   "+391",
			SequenceID:    campaign.SequenceMain,
			SequenceIndex: 0,
		})
		if !ok {
			t.Error("AddPending refused first insert")
		}
		c.RecomputeStats()
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != campaign.StatusRunning {
		t.Errorf("expected running, got %s", updated.Status)
	}

	got, err := s.Get("camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Queue) != 1 || got.Stats.Pending != 1 {
		t.Errorf("mutation not persisted: queue=%d pending=%d", len(got.Queue), got.Stats.Pending)
	}

	// The pending index must survive the load: a duplicate insert for the
	// same (contact, sequence index) is refused.
	if got.AddPending(campaign.QueueItem{ContactID: "c1", SequenceIndex: 0}) {
		t.Error("AddPending allowed a duplicate pending item after reload")
	}
}

func TestUpdateAborts(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Put(testCampaign("camp-1")); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("boom")
	_, err := s.Update("camp-1", func(c *campaign.Campaign) error {
		c.Status = campaign.StatusCancelled
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, _ := s.Get("camp-1")
	if got.Status != campaign.StatusDraft {
		t.Errorf("aborted update leaked: %s", got.Status)
	}
}

func TestListByStatus(t *testing.T) {
	s := setupTestStore(t)

	running := testCampaign("camp-1")
	running.Status = campaign.StatusRunning
	paused := testCampaign("camp-2")
	paused.Status = campaign.StatusPaused

	for _, c := range []*campaign.Campaign{running, paused} {
		if err := s.Put(c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListByStatus(campaign.StatusRunning)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "camp-1" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Put(testCampaign("camp-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("camp-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("camp-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
