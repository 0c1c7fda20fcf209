package attachment

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadStore persists uploaded files addressed by their /uploads/ path.
type UploadStore interface {
	// Open returns the bytes stored at an /uploads/ path.
	Open(ctx context.Context, uploadPath string) ([]byte, error)
	// Save stores data under a generated unique filename and returns its /uploads/ path.
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
	// List returns up to limit stored images, newest first.
	List(ctx context.Context, limit int) ([]StoredImage, error)
}

// StoredImage describes one stored upload.
type StoredImage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

const defaultListLimit = 40

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// storedName prefixes a sanitized filename with a unique id.
func storedName(filename string) (id, name string) {
	id = strings.ReplaceAll(uuid.NewString(), "-", "")
	return id, id + "-" + unsafeFilenameChars.ReplaceAllString(filename, "_")
}

// displayName strips the unique id prefix from a stored filename.
func displayName(stored string) string {
	if _, rest, ok := strings.Cut(stored, "-"); ok && rest != "" {
		return rest
	}
	return stored
}

// relativeUploadPath validates an /uploads/ path and returns the part after
// the prefix, slash-separated and cleaned.
func relativeUploadPath(uploadPath string) (string, error) {
	p := strings.ReplaceAll(uploadPath, `\`, "/")
	if !strings.HasPrefix(p, UploadPrefix) {
		return "", fmt.Errorf("%w: upload path must start with %s", ErrInvalidAttachment, UploadPrefix)
	}
	rel := path.Clean(strings.TrimPrefix(p, UploadPrefix))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", ErrPathTraversal
	}
	return rel, nil
}

func isImageFilename(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func newestFirst(items []StoredImage, limit int) []StoredImage {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// LocalStore keeps uploads in a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir. The directory is created on first write.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Open implements UploadStore. The resolved path must stay inside the root.
func (s *LocalStore) Open(_ context.Context, uploadPath string) ([]byte, error) {
	rel, err := relativeUploadPath(uploadPath)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(s.root, full); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return nil, ErrPathTraversal
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", uploadPath, err)
	}
	return data, nil
}

// Save implements UploadStore.
func (s *LocalStore) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	_, name := storedName(filename)
	if err := os.WriteFile(filepath.Join(s.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return UploadPrefix + name, nil
}

// List implements UploadStore.
func (s *LocalStore) List(_ context.Context, limit int) ([]StoredImage, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return []StoredImage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	items := make([]StoredImage, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImageFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, StoredImage{
			ID:        e.Name(),
			Name:      displayName(e.Name()),
			URL:       UploadPrefix + e.Name(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	return newestFirst(items, limit), nil
}
