package dlive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dliveget/dlive-downloader/internal/fetch"
	"github.com/dliveget/dlive-downloader/internal/logger"
	"github.com/dliveget/dlive-downloader/internal/model"
	"go.uber.org/zap"
)

// DefaultEndpoint is the fixed DLive GraphQL endpoint.
const DefaultEndpoint = "https://graphigo.prd.dlive.tv/"

// Fixed GraphQL operations. The query/response shape is an external
// contract; only the variables change per call.
const (
	broadcastOperation = "PastBroadcastPage"
	broadcastQuery     = "query PastBroadcastPage($permlink: String!) { " +
		"pastBroadcast(permlink: $permlink) { " +
		"id title length playbackUrl createdAt thumbnailUrl viewCount " +
		"creator { displayname username } } }"

	recentOperation = "PastBroadcastList"
	recentQuery     = "query PastBroadcastList($displayname: String!, $first: Int!) { " +
		"userByDisplayName(displayname: $displayname) { " +
		"displayname username " +
		"pastBroadcastsV2(first: $first) { " +
		"list { id permlink title length createdAt playbackUrl thumbnailUrl viewCount } } } }"
)

// unknownCreator is the sentinel used when the API reports no creator.
const unknownCreator = "unknown"

// maxBodyInError caps how much response body an APIError carries.
const maxBodyInError = 200

// Client resolves broadcast metadata through the DLive GraphQL API.
type Client struct {
	fetcher  *fetch.Client
	endpoint string
}

// NewClient creates a resolver using the given fetcher and the default
// endpoint.
func NewClient(fetcher *fetch.Client) *Client {
	return &Client{fetcher: fetcher, endpoint: DefaultEndpoint}
}

// SetEndpoint overrides the GraphQL endpoint. Used by tests and mirrors.
func (c *Client) SetEndpoint(endpoint string) {
	if endpoint != "" {
		c.endpoint = endpoint
	}
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type rawBroadcast struct {
	ID           string          `json:"id"`
	Permlink     string          `json:"permlink"`
	Title        string          `json:"title"`
	Length       json.RawMessage `json:"length"`
	Duration     json.RawMessage `json:"duration"`
	PlaybackURL  string          `json:"playbackUrl"`
	CreatedAt    json.RawMessage `json:"createdAt"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	ViewCount    json.RawMessage `json:"viewCount"`
	Creator      *struct {
		DisplayName string `json:"displayname"`
		Username    string `json:"username"`
	} `json:"creator"`
}

// post runs one GraphQL exchange and returns the decoded envelope data.
// Every failure mode carries enough context to diagnose without logs:
// status code, truncated body, or the concatenated API error messages.
func (c *Client) post(ctx context.Context, operation, query string, variables map[string]any) (json.RawMessage, error) {
	payload := graphqlRequest{
		OperationName: operation,
		Variables:     variables,
		Query:         query,
	}

	status, body, err := c.fetcher.PostJSON(ctx, c.endpoint, payload)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("GraphQL request failed: %v", err)}
	}
	logger.Debug("GraphQL response", zap.String("operation", operation), zap.Int("status", status))

	if status < 200 || status > 299 {
		return nil, &APIError{
			Message:    fmt.Sprintf("API returned status %d: %s", status, truncate(string(body), maxBodyInError)),
			StatusCode: status,
		}
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{
			Message:    fmt.Sprintf("API response could not be decoded: %s", truncate(string(body), maxBodyInError)),
			StatusCode: status,
		}
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			message := e.Message
			if message == "" {
				message = "Unknown error"
			}
			messages = append(messages, message)
		}
		return nil, &APIError{Message: strings.Join(messages, "\n"), StatusCode: status}
	}

	return envelope.Data, nil
}

// ResolveBroadcast fetches metadata for one past broadcast by permlink.
func (c *Client) ResolveBroadcast(ctx context.Context, permlink string) (*model.Broadcast, error) {
	data, err := c.post(ctx, broadcastOperation, broadcastQuery, map[string]any{"permlink": permlink})
	if err != nil {
		return nil, err
	}

	var result struct {
		PastBroadcast *rawBroadcast `json:"pastBroadcast"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.PastBroadcast == nil {
		return nil, &APIError{Message: "Broadcast not found or not accessible."}
	}

	raw := result.PastBroadcast
	if raw.PlaybackURL == "" {
		return nil, &APIError{Message: "Broadcast is missing a playback URL."}
	}

	return raw.toBroadcast(permlink, ""), nil
}

// ListRecentBroadcasts fetches up to first recent past broadcasts of a
// channel. A channel that does not exist and a channel with zero past
// broadcasts fail with distinct messages so callers can tell them apart.
func (c *Client) ListRecentBroadcasts(ctx context.Context, displayname string, first int) ([]model.Broadcast, error) {
	if first <= 0 {
		first = 15
	}
	data, err := c.post(ctx, recentOperation, recentQuery, map[string]any{
		"displayname": displayname,
		"first":       first,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		UserByDisplayName *struct {
			DisplayName      string `json:"displayname"`
			Username         string `json:"username"`
			PastBroadcastsV2 *struct {
				List []rawBroadcast `json:"list"`
			} `json:"pastBroadcastsV2"`
		} `json:"userByDisplayName"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.UserByDisplayName == nil {
		return nil, &APIError{Message: fmt.Sprintf("Channel %q was not found.", displayname)}
	}

	user := result.UserByDisplayName
	creatorName := user.DisplayName
	if creatorName == "" {
		creatorName = user.Username
	}
	if creatorName == "" {
		creatorName = displayname
	}

	var broadcasts []model.Broadcast
	if user.PastBroadcastsV2 != nil {
		for _, raw := range user.PastBroadcastsV2.List {
			if raw.PlaybackURL == "" || raw.Permlink == "" {
				continue
			}
			broadcasts = append(broadcasts, *raw.toBroadcast(raw.Permlink, creatorName))
		}
	}

	if len(broadcasts) == 0 {
		return nil, &APIError{Message: fmt.Sprintf("Channel %q has no past broadcasts.", displayname)}
	}
	return broadcasts, nil
}

// toBroadcast maps a raw API broadcast into the domain value. creatorName
// overrides the creator block when the listing query carries the creator
// at the user level instead.
func (r *rawBroadcast) toBroadcast(permlink, creatorName string) *model.Broadcast {
	if creatorName == "" {
		if r.Creator != nil {
			creatorName = r.Creator.DisplayName
			if creatorName == "" {
				creatorName = r.Creator.Username
			}
		}
		if creatorName == "" {
			creatorName = unknownCreator
		}
	}

	id := r.ID
	if id == "" {
		id = permlink
	}
	title := r.Title
	if title == "" {
		title = permlink
	}

	duration := r.Length
	if duration == nil {
		duration = r.Duration
	}

	return &model.Broadcast{
		ID:           id,
		Permlink:     permlink,
		Title:        title,
		CreatorName:  creatorName,
		PlaybackURL:  r.PlaybackURL,
		ThumbnailURL: r.ThumbnailURL,
		ViewCount:    safeInt(r.ViewCount),
		CreatedAtMs:  safeInt(r.CreatedAt),
		DurationSec:  normalizeDuration(duration),
	}
}

// normalizeDuration accepts the duration shapes observed across API
// revisions: a bare number, a numeric string, or an object with a seconds
// field. Anything unparsable normalizes to 0 (absent), never to an error.
func normalizeDuration(raw json.RawMessage) int64 {
	if value := safeInt(raw); value != 0 {
		return value
	}
	if len(raw) == 0 {
		return 0
	}

	var nested struct {
		Seconds json.RawMessage `json:"seconds"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return safeInt(nested.Seconds)
	}
	return 0
}

// safeInt parses a JSON value that may be a number or a numeric string
// into an int64, returning 0 when absent or unparsable.
func safeInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return int64(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if value, err := strconv.ParseFloat(text, 64); err == nil {
			return int64(value)
		}
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
