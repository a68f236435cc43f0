package model

import (
	"strings"
	"time"
)

// DownloadTask represents a single broadcast download managed by the
// background download service.
type DownloadTask struct {
	ID           string
	Permlink     string
	VariantIndex int // 1-based quality selection, 0 = best available
	Title        string
	CreatorName  string
	Quality      string
	Status       TaskStatus
	Stage        Stage // current pipeline stage while downloading
	Completed    int   // parts completed within the current stage
	Total        int   // parts total within the current stage
	LastError    string
	OutputPath   string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ProgressFraction returns stage progress in the range 0.0 to 1.0.
func (dt *DownloadTask) ProgressFraction() float64 {
	if dt.Total <= 0 {
		return 0
	}
	f := float64(dt.Completed) / float64(dt.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// GetDisplayTitle returns title, output filename, or permlink in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.Title != "" {
		return dt.Title
	}

	if dt.OutputPath != "" {
		parts := strings.FieldsFunc(dt.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	return dt.Permlink
}
