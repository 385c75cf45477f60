package imagegen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Orphan is a generated image whose result could not be persisted.
type Orphan struct {
	CorrelationID string    `json:"correlation_id"`
	OwnerID       string    `json:"owner_id"`
	Prompt        string    `json:"prompt"`
	Mode          string    `json:"mode"`
	Description   string    `json:"description,omitempty"`
	MediaType     string    `json:"media_type"`
	CreatedAt     time.Time `json:"created_at"`

	Data []byte `json:"-"`
}

// OrphanSink keeps already-paid-for images for later reconciliation. The
// client never receives an orphaned image.
type OrphanSink interface {
	Keep(orphan Orphan) (string, error)
}

// DirOrphanSink writes <dir>/<correlation>.<ext> plus a .json sidecar.
type DirOrphanSink struct {
	dir string
}

// NewDirOrphanSink creates dir if needed.
func NewDirOrphanSink(dir string) (*DirOrphanSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagegen: failed to create orphan dir: %w", err)
	}
	return &DirOrphanSink{dir: dir}, nil
}

// Keep writes the image and its sidecar and returns the image path.
func (s *DirOrphanSink) Keep(orphan Orphan) (string, error) {
	if orphan.CorrelationID == "" {
		return "", fmt.Errorf("imagegen: orphan has no correlation id")
	}
	if orphan.MediaType == "" {
		orphan.MediaType = DetectImageMediaType(orphan.Data)
	}

	base := filepath.Join(s.dir, filepath.Base(orphan.CorrelationID))
	imagePath := base + extensionFor(orphan.MediaType)
	if err := os.WriteFile(imagePath, orphan.Data, 0o644); err != nil {
		return "", fmt.Errorf("imagegen: failed to write orphan image: %w", err)
	}

	meta, err := json.MarshalIndent(orphan, "", "  ")
	if err != nil {
		return imagePath, fmt.Errorf("imagegen: failed to encode orphan metadata: %w", err)
	}
	if err := os.WriteFile(base+".json", meta, 0o644); err != nil {
		return imagePath, fmt.Errorf("imagegen: failed to write orphan metadata: %w", err)
	}
	return imagePath, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

type discardOrphans struct{}

func (discardOrphans) Keep(Orphan) (string, error) { return "", nil }
