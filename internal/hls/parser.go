package hls

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dliveget/dlive-downloader/internal/model"
)

// Playlist tag markers
const (
	StreamInfTag = "#EXT-X-STREAM-INF"
	MapTag       = "#EXT-X-MAP"
)

// Attribute keys extracted from stream-inf lines
const (
	AttrVideo            = "VIDEO"
	AttrName             = "NAME"
	AttrResolution       = "RESOLUTION"
	AttrBandwidth        = "BANDWIDTH"
	AttrAverageBandwidth = "AVERAGE-BANDWIDTH"
	AttrURI              = "URI"
)

// PlaylistError reports a structurally invalid M3U8 manifest.
type PlaylistError struct {
	Message string
}

func (e *PlaylistError) Error() string {
	return e.Message
}

// MediaPlaylist is the parsed form of one variant's media playlist: an
// optional fMP4 initialization segment plus the ordered media segment URLs.
type MediaPlaylist struct {
	InitURL     string // "" when the playlist has no EXT-X-MAP entry
	SegmentURLs []string
}

// TotalParts returns the number of parts to download, counting the init
// segment when present.
func (p *MediaPlaylist) TotalParts() int {
	total := len(p.SegmentURLs)
	if p.InitURL != "" {
		total++
	}
	return total
}

var attributePattern = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)

// parseAttributes extracts the key=value pairs of a tag line. Values are
// either quoted strings or bare tokens up to the next comma; unknown keys
// are retained in the map but otherwise unused.
func parseAttributes(line string) map[string]string {
	attributes := make(map[string]string)
	for _, match := range attributePattern.FindAllStringSubmatch(line, -1) {
		key := match[1]
		value := strings.Trim(match[2], `"`)
		attributes[key] = value
	}
	return attributes
}

// resolveURL resolves ref against base using standard base+relative URL
// resolution. An unparsable reference is returned as-is so a single odd
// line never poisons the whole playlist.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// ParseMasterPlaylist turns raw master playlist text into the list of
// stream variants, in source order with dense 1-based indices. The variant
// playlist path is the non-blank line immediately following each
// stream-inf line, resolved against baseURL.
func ParseMasterPlaylist(text, baseURL string) ([]model.StreamVariant, error) {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}

	var variants []model.StreamVariant
	for i, line := range lines {
		if !strings.HasPrefix(line, StreamInfTag) {
			continue
		}
		if i+1 >= len(lines) {
			return nil, &PlaylistError{Message: "malformed master playlist: stream-inf line has no variant URL"}
		}

		attributes := parseAttributes(line)
		index := len(variants) + 1

		quality := attributes[AttrVideo]
		if quality == "" {
			quality = attributes[AttrName]
		}
		if quality == "" {
			quality = attributes[AttrResolution]
		}
		if quality == "" {
			quality = fmt.Sprintf("Variant %d", index)
		}

		variants = append(variants, model.StreamVariant{
			Index:       index,
			PlaylistURL: resolveURL(baseURL, lines[i+1]),
			Quality:     quality,
			Resolution:  attributes[AttrResolution],
			Bandwidth:   parseBandwidth(attributes),
		})
	}

	if len(variants) == 0 {
		return nil, &PlaylistError{Message: "no variants found in master playlist"}
	}
	return variants, nil
}

// parseBandwidth prefers the average bandwidth attribute over the peak
// one; non-numeric values are treated as absent, never as an error.
func parseBandwidth(attributes map[string]string) int64 {
	raw := attributes[AttrAverageBandwidth]
	if raw == "" {
		raw = attributes[AttrBandwidth]
	}
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(value)
}

// ParseMediaPlaylist turns raw media playlist text into the ordered
// segment URLs plus the optional fMP4 initialization segment carried by an
// EXT-X-MAP tag. If the tag appears more than once the last URI wins.
// A playlist with zero segments is not an error here; the download
// pipeline enforces the at-least-one-part invariant.
func ParseMediaPlaylist(text, baseURL string) (*MediaPlaylist, error) {
	playlist := &MediaPlaylist{}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, MapTag) {
			if uri := parseAttributes(line)[AttrURI]; uri != "" {
				playlist.InitURL = resolveURL(baseURL, uri)
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		playlist.SegmentURLs = append(playlist.SegmentURLs, resolveURL(baseURL, line))
	}

	return playlist, nil
}
