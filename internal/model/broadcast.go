package model

import (
	"fmt"
	"time"
)

// Broadcast is the metadata of one DLive past broadcast as resolved from
// the GraphQL API.
type Broadcast struct {
	ID           string
	Permlink     string
	Title        string
	CreatorName  string
	PlaybackURL  string
	ThumbnailURL string
	ViewCount    int64
	CreatedAtMs  int64 // creation time in Unix milliseconds, 0 when unknown
	DurationSec  int64 // 0 when unknown
}

// CreatedAt returns the creation time, or the zero time when unknown.
func (b *Broadcast) CreatedAt() time.Time {
	if b.CreatedAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.CreatedAtMs)
}

// DurationString formats the duration as HH:MM:SS, or "" when unknown.
func (b *Broadcast) DurationString() string {
	if b.DurationSec <= 0 {
		return ""
	}
	hours := b.DurationSec / 3600
	minutes := (b.DurationSec % 3600) / 60
	seconds := b.DurationSec % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// StreamVariant is one quality option from a master playlist.
type StreamVariant struct {
	Index       int // 1-based position in the master playlist
	PlaylistURL string
	Quality     string
	Resolution  string // "" when the playlist does not declare one
	Bandwidth   int64  // bits per second, 0 when unknown
}

// DisplayName renders a human readable label such as
// "1080p (1920x1080) @ 8000 kbps · ~976.6 MB". The size estimate is only
// included when both the bandwidth and a duration are known.
func (v StreamVariant) DisplayName(durationSec int64) string {
	resolution := v.Resolution
	if resolution == "" {
		resolution = "?"
	}
	name := fmt.Sprintf("%s (%s)", v.Quality, resolution)
	if v.Bandwidth > 0 {
		name += fmt.Sprintf(" @ %d kbps", v.Bandwidth/1000)
		if durationSec > 0 {
			estimatedBytes := float64(v.Bandwidth) * float64(durationSec) / 8
			name += fmt.Sprintf(" · ~%s", HumanSize(estimatedBytes))
		}
	}
	return name
}

// HumanSize formats a byte count with its largest fitting unit.
func HumanSize(byteCount float64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := byteCount
	for i, unit := range units {
		if size < 1024 || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return ""
}
