package campaign

import (
	"fmt"
	"time"
)

// Validate rejects malformed campaign configuration before anything reaches
// the queue. Transport and contact anomalies are runtime concerns and are
// not checked here.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if c.MessageTemplate == "" {
		return fmt.Errorf("message template is required")
	}
	if c.SessionName == "" {
		return fmt.Errorf("transport session name is required")
	}
	if len(c.ContactIDs) == 0 {
		return fmt.Errorf("at least one target contact is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	if c.Schedule != nil {
		if err := c.Schedule.Validate(); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.MessageSequences))
	for i, step := range c.MessageSequences {
		if step.ID == "" {
			return fmt.Errorf("sequence step %d: id is required", i+1)
		}
		if seen[step.ID] {
			return fmt.Errorf("sequence step %d: duplicate id %q", i+1, step.ID)
		}
		seen[step.ID] = true
		if step.MessageTemplate == "" && step.Attachment == nil {
			return fmt.Errorf("sequence step %q: message template or attachment is required", step.ID)
		}
		if step.DelayMinutes < MinDelayMinutes || step.DelayMinutes > MaxDelayMinutes {
			return fmt.Errorf("sequence step %q: delay must be between %d and %d minutes",
				step.ID, MinDelayMinutes, MaxDelayMinutes)
		}
		switch step.Condition {
		case ConditionNoResponse, ConditionAlways:
		default:
			return fmt.Errorf("sequence step %q: unknown condition %q", step.ID, step.Condition)
		}
	}

	return nil
}

// Validate checks the window bounds and timezone
func (s *Schedule) Validate() error {
	if s.StartTime == "" && s.EndTime == "" && s.Timezone == "" && len(s.DaysOfWeek) == 0 {
		return nil
	}
	if (s.StartTime == "") != (s.EndTime == "") {
		return fmt.Errorf("start and end time must be set together")
	}
	if s.StartTime != "" {
		if _, err := time.Parse("15:04", s.StartTime); err != nil {
			return fmt.Errorf("invalid start time %q: expected HH:MM", s.StartTime)
		}
		if _, err := time.Parse("15:04", s.EndTime); err != nil {
			return fmt.Errorf("invalid end time %q: expected HH:MM", s.EndTime)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	for _, d := range s.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid day of week %d", d)
		}
	}
	return nil
}
