package campaign

import (
	"time"
)

// Status represents the lifecycle state of a campaign
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Condition controls whether a follow-up step still fires after the
// contact has responded
type Condition string

const (
	ConditionNoResponse Condition = "no_response"
	ConditionAlways     Condition = "always"
)

// SequenceMain is the SequenceID of the primary (first) send per contact
const SequenceMain = "main"

// Delay bounds for follow-up steps, in minutes (1 minute .. 7 days)
const (
	MinDelayMinutes = 1
	MaxDelayMinutes = 10080
)

// Schedule restricts sending to a daily local-time window
type Schedule struct {
	StartTime  string         `json:"start_time"` // HH:MM, 24h
	EndTime    string         `json:"end_time"`   // HH:MM, 24h
	Timezone   string         `json:"timezone"`   // IANA name, e.g. Europe/Rome
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
}

// Attachment describes media referenced by a sequence step. Only the
// descriptor is stored; bytes live with the transport/storage collaborator.
type Attachment struct {
	Type    string `json:"type"` // image, document, audio, video
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SequenceStep is the immutable configuration of one follow-up message
type SequenceStep struct {
	ID              string      `json:"id"`
	MessageTemplate string      `json:"message_template,omitempty"`
	DelayMinutes    int         `json:"delay_minutes"`
	Condition       Condition   `json:"condition"`
	IsActive        bool        `json:"is_active"`
	Attachment      *Attachment `json:"attachment,omitempty"`
}

// Sender identifies the CRM user on whose behalf messages go out.
// Its fields feed the fixed template variables.
type Sender struct {
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

// Campaign is the aggregate root: configuration plus the embedded delivery
// queue. It is loaded, mutated and saved as a unit; all queue mutations for
// one campaign are serialized by the store.
type Campaign struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Name             string         `json:"name"`
	Status           Status         `json:"status"`
	MessageTemplate  string         `json:"message_template"`
	MessageSequences []SequenceStep `json:"message_sequences,omitempty"`
	Schedule         *Schedule      `json:"schedule,omitempty"`
	SessionName      string         `json:"session_name"`
	Sender           Sender         `json:"sender"`
	ContactIDs       []string       `json:"contact_ids"`
	MaxRetries       int            `json:"max_retries"`
	Queue            []QueueItem    `json:"queue"`
	Stats            Stats          `json:"stats"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`

	// pending indexes the queue by (contact, sequence index) so that the
	// "at most one pending item per pair" invariant is enforced
	// structurally instead of by convention. Rebuilt on load.
	pending map[pendingKey]int
}

// StepByID returns the sequence step with the given id, or nil
func (c *Campaign) StepByID(id string) *SequenceStep {
	for i := range c.MessageSequences {
		if c.MessageSequences[i].ID == id {
			return &c.MessageSequences[i]
		}
	}
	return nil
}

// CanStart reports whether the campaign may transition to running
func (c *Campaign) CanStart() bool {
	return c.Status == StatusDraft || c.Status == StatusScheduled
}

// Terminal reports whether the campaign reached a final state
func (c *Campaign) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}
