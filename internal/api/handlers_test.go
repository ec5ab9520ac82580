package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/config"
	"github.com/ptrelli/wadrip/internal/contacts"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/store"
)

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

func setupServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "campaigns.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dir := &stubDirectory{contacts: map[string]*contacts.Contact{
		"c1": {ID: "c1", Name: "Mario", Phone: "+391", Status: contacts.StatusNew},
	}}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	e := engine.New(st, dir, logger, nil)

	cfg := &config.Config{}
	cfg.Server.APIKey = "test-key"
	cfg.Dispatcher.MaxRetries = 3

	return NewServer(e, st, nil, cfg, logger), st
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func createTestCampaign(t *testing.T, s *Server) string {
	t.Helper()
	w := doRequest(t, s, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		UserID:          "u1",
		Name:            "promo",
		MessageTemplate: "Ciao {name}",
		SessionName:     "sales",
		ContactIDs:      []string{"c1"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	var resp CampaignResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.ID
}

func TestCreateCampaign(t *testing.T) {
	s, st := setupServer(t)
	id := createTestCampaign(t, s)

	c, err := st.Get(id)
	if err != nil {
		t.Fatalf("campaign not persisted: %v", err)
	}
	if c.Status != campaign.StatusDraft {
		t.Errorf("status = %s, want draft", c.Status)
	}
	if c.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want configured default 3", c.MaxRetries)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	s, _ := setupServer(t)
	w := doRequest(t, s, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		Name: "no template or contacts",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateCampaignAssignsStepIDs(t *testing.T) {
	s, st := setupServer(t)
	w := doRequest(t, s, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		Name:            "promo",
		MessageTemplate: "Ciao {name}",
		SessionName:     "sales",
		ContactIDs:      []string{"c1"},
		MessageSequences: []campaign.SequenceStep{
			{MessageTemplate: "follow-up", DelayMinutes: 60, Condition: campaign.ConditionAlways, IsActive: true},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	var resp CampaignResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	c, _ := st.Get(resp.ID)
	if c.MessageSequences[0].ID == "" {
		t.Error("step id not assigned")
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", w.Code)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	s, _ := setupServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/campaigns/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	s, _ := setupServer(t)
	id := createTestCampaign(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start returned %d: %s", w.Code, w.Body.String())
	}
	var resp CampaignResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != campaign.StatusRunning {
		t.Errorf("status = %s, want running", resp.Status)
	}

	// double start conflicts
	w = doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on double start, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/pause", nil)
	if w.Code != http.StatusOK {
		t.Errorf("pause returned %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/resume", nil)
	if w.Code != http.StatusOK {
		t.Errorf("resume returned %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Errorf("cancel returned %d", w.Code)
	}
}

func TestCampaignStatsAndQueue(t *testing.T) {
	s, _ := setupServer(t)
	id := createTestCampaign(t, s)
	doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/start", nil)

	w := doRequest(t, s, http.MethodGet, "/api/v1/campaigns/"+id+"/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats returned %d", w.Code)
	}
	var stats campaign.Stats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Pending != 1 {
		t.Errorf("stats.Pending = %d, want 1", stats.Pending)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/campaigns/"+id+"/queue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("queue returned %d", w.Code)
	}
	var queue []campaign.QueueItem
	json.Unmarshal(w.Body.Bytes(), &queue)
	if len(queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(queue))
	}
}

func TestInboundWebhook(t *testing.T) {
	s, st := setupServer(t)
	id := createTestCampaign(t, s)
	doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/start", nil)

	w := doRequest(t, s, http.MethodPost, "/api/v1/webhooks/inbound", InboundWebhookRequest{
		CampaignID: id, ContactID: "c1", Kind: "reply",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("inbound webhook returned %d: %s", w.Code, w.Body.String())
	}

	c, _ := st.Get(id)
	for _, it := range c.Queue {
		if it.ContactID == "c1" && !it.HasReceivedResponse {
			t.Errorf("response flag not set: %+v", it)
		}
	}
}

func TestInboundWebhookValidation(t *testing.T) {
	s, _ := setupServer(t)
	id := createTestCampaign(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/v1/webhooks/inbound", InboundWebhookRequest{
		CampaignID: id, ContactID: "c1", Kind: "shrug",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown kind, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/webhooks/inbound", InboundWebhookRequest{ContactID: "c1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing campaign_id, got %d", w.Code)
	}
}

func TestStatusWebhook(t *testing.T) {
	s, _ := setupServer(t)
	id := createTestCampaign(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/v1/webhooks/status", StatusWebhookRequest{
		CampaignID: id, MessageID: "wamid.1", Status: "sent",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-receipt status, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/webhooks/status", StatusWebhookRequest{
		CampaignID: id, MessageID: "wamid.1", Status: "delivered",
	})
	if w.Code != http.StatusOK {
		t.Errorf("delivered receipt returned %d", w.Code)
	}
}

func TestResponseWebhook(t *testing.T) {
	s, st := setupServer(t)
	id := createTestCampaign(t, s)
	doRequest(t, s, http.MethodPost, "/api/v1/campaigns/"+id+"/start", nil)

	w := doRequest(t, s, http.MethodPost, "/api/v1/webhooks/response", ResponseWebhookRequest{
		CampaignID: id, ContactID: "c1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("response webhook returned %d", w.Code)
	}

	c, _ := st.Get(id)
	for _, it := range c.Queue {
		if it.ContactID == "c1" && !it.HasReceivedResponse {
			t.Errorf("response flag not set: %+v", it)
		}
	}
}
