package sending

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// DefaultResendBaseURL is the public Resend API endpoint.
const DefaultResendBaseURL = "https://api.resend.com"

// ResendSender delivers through a Resend-compatible HTTP API.
type ResendSender struct {
	apiKey string
	client *resty.Client
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// NewResendSender creates a client for baseURL (DefaultResendBaseURL when empty).
func NewResendSender(apiKey, baseURL string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		}).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ResendSender{apiKey: apiKey, client: client}
}

// Ready implements Sender.
func (s *ResendSender) Ready() error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: delivery API key is missing", ErrNotConfigured)
	}
	return nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	body := resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	for _, f := range msg.Attachments {
		body.Attachments = append(body.Attachments, resendAttachment{
			Filename: f.Filename,
			Content:  base64.StdEncoding.EncodeToString(f.Content),
		})
	}

	var out resendResponse
	var apiErr resendError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("delivery API request failed: %w", err)
	}
	if resp.IsError() {
		reason := apiErr.Message
		if reason == "" {
			reason = http.StatusText(resp.StatusCode())
		}
		return "", fmt.Errorf("delivery API error (%d): %s", resp.StatusCode(), reason)
	}

	logger.Debug("email accepted by delivery API", "recipient", msg.To, "message_id", out.ID)
	return out.ID, nil
}
