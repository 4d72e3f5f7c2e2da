// Package notify provides desktop notifications via D-Bus.
package notify

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

// Urgency represents notification priority levels defined by the freedesktop notification protocol.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(Notification) (uint32, error) { return 0, nil }

func (noopNotifier) Close(uint32) error { return nil }

// NowPlaying builds the notification for a track that just started.
func NowPlaying(t library.Track, timeout time.Duration) Notification {
	var parts []string
	for _, s := range []string{t.Artist, t.Album} {
		if s != "" && s != tags.UnknownArtist && s != tags.UnknownAlbum {
			parts = append(parts, s)
		}
	}
	icon := t.Artwork
	if icon == "" {
		icon = tags.FolderArt(t.URI)
	}
	ms := int32(-1)
	if timeout > 0 {
		ms = int32(timeout.Milliseconds()) //nolint:gosec // configured in milliseconds
	}
	return Notification{
		Title:   t.Title,
		Body:    strings.Join(parts, " · "),
		Icon:    icon,
		Timeout: ms,
		Urgency: UrgencyLow,
	}
}

// Announcer shows a now-playing notification per track, replacing the
// previous one so only the latest stays on screen.
type Announcer struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger
	lastID   uint32
}

func NewAnnouncer(n Notifier, timeout time.Duration, log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{notifier: n, timeout: timeout, log: log}
}

// Track announces t. Failures are logged.
func (a *Announcer) Track(t library.Track) {
	n := NowPlaying(t, a.timeout)
	n.ReplacesID = a.lastID
	id, err := a.notifier.Notify(n)
	if err != nil {
		a.log.Debug("now playing notification", zap.String("track", t.ID), zap.Error(err))
		return
	}
	a.lastID = id
}

// Close removes the last notification.
func (a *Announcer) Close() error {
	if a.lastID == 0 {
		return nil
	}
	err := a.notifier.Close(a.lastID)
	a.lastID = 0
	return err
}
