package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"propchat/internal/app/storage"
	"propchat/internal/pkg/logx"
)

const (
	// ArchivePrefix is the object key prefix of transcript archives.
	ArchivePrefix = "transcripts"

	// DefaultLinkTTL is how long an archive download link stays valid.
	DefaultLinkTTL = 15 * time.Minute

	archiveContentType = "application/json"
)

// Archive describes an exported transcript.
type Archive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Messages  int       `json:"messages"`

	// Reused is true when an identical archive already existed and was not uploaded again.
	Reused bool `json:"reused"`
}

type archiveDocument struct {
	GuestID    string    `json:"guestId"`
	AdminID    string    `json:"adminId"`
	ExportedAt time.Time `json:"exportedAt"`
	Messages   []Entry   `json:"messages"`
}

// Exporter writes admin-view transcripts to object storage.
type Exporter struct {
	service *Service
	storage storage.StorageService
	linkTTL time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewExporter constructs an Exporter. A non-positive linkTTL means DefaultLinkTTL.
func NewExporter(service *Service, objects storage.StorageService, linkTTL time.Duration) *Exporter {
	if linkTTL <= 0 {
		linkTTL = DefaultLinkTTL
	}

	return &Exporter{
		service: service,
		storage: objects,
		linkTTL: linkTTL,
		now:     time.Now,
		logger:  logx.Component("transcript"),
	}
}

// Export archives the transcript of the guest with the given internal ID and returns a download link.
// Archives are keyed by the guest and its latest chat, so exporting an unchanged transcript twice
// uploads once.
func (x *Exporter) Export(ctx context.Context, adminID, guestInternalID string) (Archive, error) {
	guest, err := x.service.presence.GetGuestByID(ctx, guestInternalID)
	if err != nil {
		return Archive{}, err
	}

	entries, err := x.service.AdminHistory(ctx, adminID, guestInternalID)
	if err != nil {
		return Archive{}, err
	}

	key := ArchiveKey(guest.GuestID, entries)
	archive := Archive{Key: key, Messages: len(entries)}

	_, err = x.storage.Stat(ctx, key)
	switch {
	case err == nil:
		archive.Reused = true
	case errors.Is(err, storage.ErrObjectNotFound):
		if err := x.upload(ctx, key, archiveDocument{
			GuestID:    guest.GuestID,
			AdminID:    adminID,
			ExportedAt: x.now().UTC(),
			Messages:   entries,
		}); err != nil {
			return Archive{}, err
		}
	default:
		return Archive{}, err
	}

	url, err := x.storage.PresignDownload(ctx, key, x.linkTTL)
	if err != nil {
		return Archive{}, err
	}
	archive.URL = url
	archive.ExpiresAt = x.now().Add(x.linkTTL)

	x.logger.Info().
		Str("guest_id", guest.GuestID).
		Str("key", key).
		Int("messages", archive.Messages).
		Bool("reused", archive.Reused).
		Msg("Transcript exported.")

	return archive, nil
}

func (x *Exporter) upload(ctx context.Context, key string, doc archiveDocument) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return x.storage.Put(ctx, key, archiveContentType, bytes.NewReader(body))
}

// ArchiveKey names the archive of a transcript.
func ArchiveKey(guestID string, entries []Entry) string {
	last := "empty"
	if n := len(entries); n > 0 {
		last = entries[n-1].ID
	}
	return path.Join(ArchivePrefix, guestID, last+".json")
}
