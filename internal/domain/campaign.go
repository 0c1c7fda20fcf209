package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
// There is no failed status: per-recipient failures are recorded on
// CampaignRecipient rows and a completed dispatch always ends in sent.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
)

// SendMode controls when a dispatch starts and how sends are paced.
type SendMode string

const (
	SendNow       SendMode = "now"
	SendScheduled SendMode = "scheduled"
	SendStaggered SendMode = "staggered"
)

// NormalizeSendMode maps unknown or empty modes to SendNow.
func NormalizeSendMode(mode string) SendMode {
	switch SendMode(mode) {
	case SendScheduled, SendStaggered:
		return SendMode(mode)
	default:
		return SendNow
	}
}

// Campaign is a unit of work: send this HTML, with this subject, to this
// group, under this timing policy.
type Campaign struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Subject             string         `json:"subject"`
	HTML                string         `json:"html"`
	AttachmentRaw       string         `json:"attachments"`
	GroupID             *string        `json:"group_id"`
	TemplateID          *string        `json:"template_id"`
	SendMode            SendMode       `json:"send_mode"`
	ScheduledFor        *time.Time     `json:"scheduled_for"`
	StaggerMinutes      *int           `json:"stagger_minutes"`
	SendFailureReport   bool           `json:"send_failure_report"`
	FailureReportEmail  *string        `json:"failure_report_email"`
	Status              CampaignStatus `json:"status"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at"`
	SentAt              *time.Time     `json:"sent_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`

	// Populated by list queries.
	GroupName  string              `json:"group_name,omitempty"`
	Recipients []CampaignRecipient `json:"recipients,omitempty"`
}

// IsDue reports whether a scheduled campaign should be dispatched at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.Status == CampaignScheduled &&
		c.SendMode == SendScheduled &&
		c.ScheduledFor != nil &&
		!c.ScheduledFor.After(now)
}

// RecipientStatus is the outcome of one delivery attempt.
type RecipientStatus string

const (
	RecipientSent   RecipientStatus = "sent"
	RecipientFailed RecipientStatus = "failed"
)

// CampaignRecipient records one delivery attempt for a (campaign, contact)
// pair. The set is replaced wholesale on every dispatch. Email is the
// encrypted envelope at rest and plaintext once a service has decrypted it.
type CampaignRecipient struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	ContactID  string          `json:"contact_id"`
	Email      string          `json:"email"`
	Status     RecipientStatus `json:"status"`
	MessageID  *string         `json:"message_id"`
	Error      *string         `json:"error"`
	SentAt     *time.Time      `json:"sent_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RecipientResult is the per-recipient entry of a DispatchResult.
type RecipientResult struct {
	ID     string          `json:"id"`
	Email  string          `json:"email"`
	Status RecipientStatus `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// DispatchResult is returned by a completed dispatch.
type DispatchResult struct {
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Results []RecipientResult `json:"results"`
}

// SweepResult is returned by a due-campaign sweep.
type SweepResult struct {
	ProcessedCount int `json:"processedCount"`
	FailedCount    int `json:"failedCount"`
}
