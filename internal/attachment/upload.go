package attachment

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // GIF decode support
	_ "image/jpeg" // JPEG decode support
	_ "image/png"  // PNG decode support
	"strings"

	"github.com/ignite/mailroom/internal/domain"
	_ "golang.org/x/image/webp" // WebP decode support
)

var allowedImageTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// SaveImage validates an uploaded image and stores it. The declared content
// type, when present, must be an allowed image type, and the bytes must
// decode as one of PNG, JPEG, GIF or WEBP.
func SaveImage(ctx context.Context, store UploadStore, filename, contentType string, data []byte) (domain.AttachmentRecord, error) {
	if len(data) > MaxBytes {
		return domain.AttachmentRecord{}, ErrTooLarge
	}
	if ct := strings.ToLower(strings.TrimSpace(contentType)); ct != "" && !isAllowedContentType(ct) {
		return domain.AttachmentRecord{}, ErrUnsupportedImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.AttachmentRecord{}, ErrUnsupportedImage
	}
	mime, ok := allowedImageTypes[format]
	if !ok {
		return domain.AttachmentRecord{}, ErrUnsupportedImage
	}

	p, err := store.Save(ctx, filename, mime, data)
	if err != nil {
		return domain.AttachmentRecord{}, err
	}
	return domain.AttachmentRecord{
		ID:   strings.TrimPrefix(p, UploadPrefix),
		Type: domain.AttachmentUpload,
		Name: filename,
		URL:  p,
	}, nil
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedImageTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}
