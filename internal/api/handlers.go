package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/store"
)

// CreateCampaignRequest is the request body for POST /campaigns
type CreateCampaignRequest struct {
	UserID           string                  `json:"user_id"`
	Name             string                  `json:"name"`
	MessageTemplate  string                  `json:"message_template"`
	MessageSequences []campaign.SequenceStep `json:"message_sequences,omitempty"`
	Schedule         *campaign.Schedule      `json:"schedule,omitempty"`
	SessionName      string                  `json:"session_name"`
	Sender           campaign.Sender         `json:"sender"`
	ContactIDs       []string                `json:"contact_ids"`
	MaxRetries       int                     `json:"max_retries,omitempty"`
	Scheduled        bool                    `json:"scheduled,omitempty"`
}

// CampaignResponse is the summary returned for campaign operations
type CampaignResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    campaign.Status `json:"status"`
	Stats     campaign.Stats  `json:"stats"`
	CreatedAt time.Time       `json:"created_at"`
}

// InboundWebhookRequest is the request body for POST /webhooks/inbound
type InboundWebhookRequest struct {
	CampaignID string `json:"campaign_id"`
	ContactID  string `json:"contact_id"`
	Kind       string `json:"kind"` // reply, not_interested
}

// StatusWebhookRequest is the request body for POST /webhooks/status
type StatusWebhookRequest struct {
	CampaignID string `json:"campaign_id"`
	MessageID  string `json:"message_id"`
	Status     string `json:"status"` // delivered, read
}

// ResponseWebhookRequest is the request body for POST /webhooks/response
type ResponseWebhookRequest struct {
	CampaignID string `json:"campaign_id"`
	ContactID  string `json:"contact_id"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func summarize(c *campaign.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:        c.ID,
		Name:      c.Name,
		Status:    c.Status,
		Stats:     c.Stats,
		CreatedAt: c.CreatedAt,
	}
}

// handleCreateCampaign handles POST /api/v1/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status := campaign.StatusDraft
	if req.Scheduled {
		status = campaign.StatusScheduled
	}
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = s.config.Dispatcher.MaxRetries
	}

	c := &campaign.Campaign{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		Name:             req.Name,
		Status:           status,
		MessageTemplate:  req.MessageTemplate,
		MessageSequences: req.MessageSequences,
		Schedule:         req.Schedule,
		SessionName:      req.SessionName,
		Sender:           req.Sender,
		ContactIDs:       req.ContactIDs,
		MaxRetries:       maxRetries,
	}
	for i := range c.MessageSequences {
		if c.MessageSequences[i].ID == "" {
			c.MessageSequences[i].ID = uuid.New().String()
		}
	}

	if err := s.engine.Create(r.Context(), c); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("campaign created via API", "id", c.ID, "name", c.Name, "contacts", len(c.ContactIDs))
	s.sendJSON(w, http.StatusCreated, summarize(c))
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	var (
		list []*campaign.Campaign
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		list, err = s.store.ListByStatus(campaign.Status(status))
	} else {
		list, err = s.store.List()
	}
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}

	out := make([]CampaignResponse, len(list))
	for i, c := range list {
		out[i] = summarize(c)
	}
	s.sendJSON(w, http.StatusOK, out)
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleCampaignStats handles GET /api/v1/campaigns/{id}/stats
func (s *Server) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, c.Stats)
}

// handleCampaignQueue handles GET /api/v1/campaigns/{id}/queue
func (s *Server) handleCampaignQueue(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, c.Queue)
}

func (s *Server) loadCampaign(w http.ResponseWriter, r *http.Request) (*campaign.Campaign, bool) {
	id := chi.URLParam(r, "id")
	c, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Campaign not found")
		} else {
			s.logger.Error("failed to load campaign", "id", id, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to load campaign")
		}
		return nil, false
	}
	return c, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Start)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.engine.Cancel)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*campaign.Campaign, error)) {
	id := chi.URLParam(r, "id")
	c, err := op(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.sendError(w, http.StatusNotFound, "Campaign not found")
		case errors.Is(err, engine.ErrInvalidTransition):
			s.sendError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("lifecycle operation failed", "id", id, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Operation failed")
		}
		return
	}
	s.sendJSON(w, http.StatusOK, summarize(c))
}

// handleInboundWebhook handles POST /api/v1/webhooks/inbound: a classified
// reply or not-interested outcome reported by the gateway integration.
func (s *Server) handleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	var req InboundWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CampaignID == "" || req.ContactID == "" {
		s.sendError(w, http.StatusBadRequest, "campaign_id and contact_id are required")
		return
	}

	err := s.engine.ReportInboundEvent(r.Context(), req.CampaignID, req.ContactID, engine.EventKind(req.Kind))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatusWebhook handles POST /api/v1/webhooks/status: delivered and
// read receipts from the gateway, keyed by transport message id.
func (s *Server) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	var req StatusWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CampaignID == "" || req.MessageID == "" {
		s.sendError(w, http.StatusBadRequest, "campaign_id and message_id are required")
		return
	}

	err := s.engine.ReportDeliveryReceipt(r.Context(), req.CampaignID, req.MessageID, campaign.ItemStatus(req.Status))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResponseWebhook handles POST /api/v1/webhooks/response: an
// unclassified inbound message from a contact. Follow-up conditions react;
// nothing is cancelled until the reply is classified.
func (s *Server) handleResponseWebhook(w http.ResponseWriter, r *http.Request) {
	var req ResponseWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CampaignID == "" || req.ContactID == "" {
		s.sendError(w, http.StatusBadRequest, "campaign_id and contact_id are required")
		return
	}

	if err := s.engine.MarkResponseReceived(r.Context(), req.CampaignID, req.ContactID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		s.logger.Error("response webhook failed", "campaign_id", req.CampaignID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to record response")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	s.sendJSON(w, status, ErrorResponse{Error: msg})
}
