// Package sending defines the transport boundary for outbound email and its
// implementations: a Resend-compatible delivery API client and AWS SES v2.
package sending

import (
	"context"
	"errors"

	"github.com/ignite/mailroom/internal/domain"
)

// ErrNotConfigured is returned by Ready and Send when a transport is missing
// its credentials.
var ErrNotConfigured = errors.New("delivery transport is not configured")

// Sender sends a single email and returns the provider's message id.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (string, error)
	// Ready reports whether the transport has the configuration it needs.
	Ready() error
}

// Provider names a Sender implementation.
type Provider string

const (
	ProviderResend Provider = "resend"
	ProviderSES    Provider = "ses"
)
