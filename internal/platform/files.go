package platform

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Filename constraints
const (
	MaxFilenameTokenLength = 150
	FallbackToken          = "video"
	DefaultExtension       = ".mp4"
)

// unsafeCharacters matches everything outside the safe filename set:
// letters, digits, '.', '_' and '-'.
var unsafeCharacters = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slugify reduces value to the safe filename character set, capped at
// MaxFilenameTokenLength. The result is never empty: all-invalid input
// falls back to a fixed token.
func Slugify(value string) string {
	if value == "" {
		value = FallbackToken
	}
	sanitized := unsafeCharacters.ReplaceAllString(strings.TrimSpace(value), "-")
	sanitized = strings.Trim(sanitized, "-_")
	if sanitized == "" {
		sanitized = FallbackToken
	}
	if len(sanitized) > MaxFilenameTokenLength {
		sanitized = sanitized[:MaxFilenameTokenLength]
	}
	return sanitized
}

// BuildFilename synthesizes the default artifact name
// {creator}_{title}_{quality}{ext} from sanitized tokens.
func BuildFilename(creator, title, quality string) string {
	if quality == "" {
		quality = "variant"
	}
	return fmt.Sprintf("%s_%s_%s%s", Slugify(creator), Slugify(title), Slugify(quality), DefaultExtension)
}

// EnsureExtension appends the default container extension when filename
// has none.
func EnsureExtension(filename string) string {
	if filepath.Ext(filename) != "" {
		return filename
	}
	return filename + DefaultExtension
}

// ExtractPermlink pulls the permlink slug out of a DLive VOD URL. A bare
// permlink passes through unchanged.
func ExtractPermlink(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("could not parse VOD URL %q: %w", rawURL, err)
	}

	path := parsed.Path
	if path == "" {
		path = parsed.Opaque
	}
	path = strings.TrimRight(path, "/")

	parts := strings.Split(path, "/")
	permlink := parts[len(parts)-1]
	if permlink == "" {
		return "", fmt.Errorf("could not extract a permlink from %q", rawURL)
	}
	return permlink, nil
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}
