package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dliveget/dlive-downloader/internal/config"
	"github.com/dliveget/dlive-downloader/internal/model"
)

func TestSelectVariant(t *testing.T) {
	variants := []model.StreamVariant{
		{Index: 1, Quality: "1080p"},
		{Index: 2, Quality: "720p"},
		{Index: 3, Quality: "480p"},
	}

	tests := []struct {
		name        string
		variants    []model.StreamVariant
		index       int
		wantQuality string
		wantErr     bool
	}{
		{name: "zero selects first", variants: variants, index: 0, wantQuality: "1080p"},
		{name: "explicit first", variants: variants, index: 1, wantQuality: "1080p"},
		{name: "last", variants: variants, index: 3, wantQuality: "480p"},
		{name: "out of range", variants: variants, index: 4, wantErr: true},
		{name: "negative", variants: variants, index: -1, wantErr: true},
		{name: "no variants", variants: nil, index: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variant, err := SelectVariant(tt.variants, tt.index)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if variant.Quality != tt.wantQuality {
				t.Errorf("Quality = %q, want %q", variant.Quality, tt.wantQuality)
			}
		})
	}
}

func TestListVariants(t *testing.T) {
	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=8000000,RESOLUTION=1920x1080,VIDEO=\"1080p\"\n" +
		"1080p/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,VIDEO=\"720p\"\n" +
		"720p/index.m3u8\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, master)
	}))
	defer server.Close()

	d := NewDownloader(&config.Settings{SegmentWorkers: 2})
	variants, err := d.ListVariants(context.Background(), server.URL+"/playback.m3u8")
	if err != nil {
		t.Fatalf("ListVariants() error = %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(variants))
	}
	if variants[0].Quality != "1080p" {
		t.Errorf("first quality = %q, want 1080p", variants[0].Quality)
	}
	want := server.URL + "/1080p/index.m3u8"
	if variants[0].PlaylistURL != want {
		t.Errorf("PlaylistURL = %q, want %q", variants[0].PlaylistURL, want)
	}
}
