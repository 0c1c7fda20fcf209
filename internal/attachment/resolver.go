package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httpretry"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// DefaultFetchTimeout bounds a single URL attachment fetch, retries included.
const DefaultFetchTimeout = 10 * time.Second

// Resolver turns a campaign's persisted attachment list into files.
type Resolver struct {
	store    UploadStore
	client   httpretry.HTTPDoer
	timeout  time.Duration
	maxBytes int64
	validate func(string) (string, error)
}

// maxRedirects matches net/http's default hop limit.
const maxRedirects = 10

// NewResolver creates a resolver reading uploads from store. A nil client
// becomes a RetryClient with two retries whose redirects are validated hop
// by hop.
func NewResolver(store UploadStore, client httpretry.HTTPDoer) *Resolver {
	if client == nil {
		client = httpretry.NewRetryClient(NewFetchClient(ValidateExternalURL), 2,
			httpretry.WithBackoff(250*time.Millisecond, 2*time.Second))
	}
	return &Resolver{
		store:    store,
		client:   client,
		timeout:  DefaultFetchTimeout,
		maxBytes: MaxBytes,
		validate: ValidateExternalURL,
	}
}

// ResolveAll loads every attachment in raw. Upload read errors, malformed
// lists and unsafe URLs fail the whole call; URL entries that answer with a
// non-2xx status or exceed the size cap are skipped.
func (r *Resolver) ResolveAll(ctx context.Context, raw string) ([]domain.File, error) {
	items, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	files := make([]domain.File, 0, len(items))
	for _, item := range items {
		switch a := item.(type) {
		case domain.UploadAttachment:
			if r.store == nil {
				return nil, fmt.Errorf("%w: no upload store configured", ErrInvalidAttachment)
			}
			data, err := r.store.Open(ctx, a.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, domain.File{Filename: a.Name, Content: data})

		case domain.URLAttachment:
			data, ok, err := r.fetch(ctx, a.URL)
			if err != nil {
				return nil, err
			}
			if !ok {
				logger.Warn("attachment skipped", "name", a.Name, "host", hostOf(a.URL))
				continue
			}
			files = append(files, domain.File{Filename: a.Name, Content: data})
		}
	}
	return files, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, bool, error) {
	safe, err := r.validate(rawURL)
	if err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, safe, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch attachment %s: %w", hostOf(safe), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, nil
	}
	if resp.ContentLength > r.maxBytes {
		return nil, false, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("read attachment %s: %w", hostOf(safe), err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, false, nil
	}
	return data, true, nil
}

// NewFetchClient returns an HTTP client that runs validate on every redirect
// target, so an allowed URL cannot bounce the fetch to a private host.
func NewFetchClient(validate func(string) (string, error)) *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if _, err := validate(req.URL.String()); err != nil {
				return fmt.Errorf("redirect to %s: %w", req.URL.Host, err)
			}
			return nil
		},
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
