package attachment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/mailroom/internal/domain"
)

const (
	// MaxBytes caps both uploaded files and fetched URL attachments.
	MaxBytes = 10 << 20
	// UploadPrefix is the public path prefix of stored uploads.
	UploadPrefix = "/uploads/"

	maxNameRunes = 180
	defaultName  = "attachment"
)

// Parse decodes a persisted attachment list into the closed variant.
// An empty string is an empty list.
func Parse(raw string) ([]domain.Attachment, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var records []domain.AttachmentRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttachment, err)
	}

	out := make([]domain.Attachment, 0, len(records))
	for i, r := range records {
		if r.URL == "" {
			return nil, fmt.Errorf("%w: entry %d has no url", ErrInvalidAttachment, i)
		}
		switch r.Type {
		case domain.AttachmentUpload:
			out = append(out, domain.UploadAttachment{Name: r.Name, Path: r.URL})
		case domain.AttachmentURL:
			out = append(out, domain.URLAttachment{Name: r.Name, URL: r.URL})
		default:
			return nil, fmt.Errorf("%w: entry %d has type %q", ErrInvalidAttachment, i, r.Type)
		}
	}
	return out, nil
}

// Marshal encodes attachments in the persisted form. A nil list encodes as [].
func Marshal(items []domain.Attachment) (string, error) {
	records := make([]domain.AttachmentRecord, 0, len(items))
	for _, a := range items {
		records = append(records, a.Record())
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sanitize filters a user-supplied JSON array of attachment entries.
// Entries that are not objects, have an unknown type or an empty url, point
// outside /uploads/, or name an unsafe URL are dropped silently.
func Sanitize(raw json.RawMessage) []domain.Attachment {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var out []domain.Attachment
	for _, item := range items {
		var entry struct {
			Type any `json:"type"`
			Name any `json:"name"`
			URL  any `json:"url"`
		}
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		typ, _ := entry.Type.(string)
		rawURL, _ := entry.URL.(string)
		rawURL = strings.TrimSpace(rawURL)
		if rawURL == "" {
			continue
		}
		name := sanitizeName(entry.Name)

		switch domain.AttachmentType(typ) {
		case domain.AttachmentUpload:
			p := strings.ReplaceAll(rawURL, `\`, "/")
			if !strings.HasPrefix(p, UploadPrefix) || strings.Contains(p, "..") {
				continue
			}
			out = append(out, domain.UploadAttachment{Name: name, Path: p})
		case domain.AttachmentURL:
			safe, err := ValidateExternalURL(rawURL)
			if err != nil {
				continue
			}
			out = append(out, domain.URLAttachment{Name: name, URL: safe})
		}
	}
	return out
}

func sanitizeName(v any) string {
	s, ok := v.(string)
	if !ok {
		return defaultName
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	if s == "" {
		return defaultName
	}
	return s
}
