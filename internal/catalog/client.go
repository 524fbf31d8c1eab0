package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultLoadLimit is the page size used when a list call passes no limit
	DefaultLoadLimit = 30

	// DefaultRequestTimeout bounds a single catalog call. Retry policy is
	// handled by callers, not here.
	DefaultRequestTimeout = 30 * time.Second

	integrityFailureMessage = "failed integrity check"
)

// Operation names understood by the catalog service
const (
	opGetChannel                = "GetChannel"
	opGetVideo                  = "GetVideo"
	opGetClip                   = "GetClip"
	opGetChannelVideos          = "GetChannelVideos"
	opGetChannelClips           = "GetChannelClips"
	opStreamPlaybackAccessToken = "StreamPlaybackAccessToken"
	opVideoPlaybackAccessToken  = "VideoPlaybackAccessToken"
	opClipPlaybackAccessToken   = "ClipPlaybackAccessToken"
)

// Client is the typed RPC client for the catalog service. It is safe for
// concurrent use. Collaborators are injected; there are no process-wide
// globals.
type Client struct {
	httpClient *http.Client
	endpoint   string
	clientID   string
	attestor   Attestor
	tokens     TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAttestor sets the integrity attestation provider
func WithAttestor(a Attestor) Option {
	return func(c *Client) { c.attestor = a }
}

// WithTokenSource sets the account credential provider
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient creates a catalog client for the given service endpoint
func NewClient(endpoint, clientID string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		endpoint:   endpoint,
		clientID:   clientID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestPayload struct {
	Operation string         `json:"operation"`
	Variables map[string]any `json:"variables"`
}

type responseEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do sends one operation and returns the raw data payload. Integrity and
// auth headers are attached on demand.
func (c *Client) do(ctx context.Context, op string, variables map[string]any, useIntegrity, useAuth bool) (json.RawMessage, error) {
	body, err := json.Marshal(requestPayload{Operation: op, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("catalog: encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-ID", c.clientID)
	if useIntegrity && c.attestor != nil {
		headers, err := c.attestor.Headers(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog: integrity headers: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}
	if useAuth && c.tokens != nil {
		if token := c.tokens.OAuthToken(); token != "" {
			req.Header.Set("Authorization", "OAuth "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthorization
	}
	if resp.StatusCode >= 500 {
		return nil, &NetworkError{Err: fmt.Errorf("server status %s", resp.Status)}
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(text, &envelope); err != nil {
		return nil, &APIError{Body: string(text)}
	}
	for _, respErr := range envelope.Errors {
		if respErr.Message == integrityFailureMessage {
			return nil, ErrIntegrity
		}
	}
	if len(envelope.Errors) > 0 {
		return nil, &APIError{Body: string(text)}
	}
	return envelope.Data, nil
}

// decodeObject unmarshals one named object, mapping a missing or id-less
// payload to ErrNotFound
func decodeObject(data json.RawMessage, key string, out interface{ objectID() string }) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return &APIError{Body: string(data)}
	}
	raw, ok := wrapper[key]
	if !ok || string(raw) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Body: string(data)}
	}
	if out.objectID() == "" {
		return ErrNotFound
	}
	return nil
}

func (c *Channel) objectID() string { return c.ID }
func (v *Video) objectID() string   { return v.ID }
func (cl *Clip) objectID() string   { return cl.ID }

// GetChannel looks up a channel by id or login; id takes precedence when
// both are set
func (c *Client) GetChannel(ctx context.Context, id, login string) (*Channel, error) {
	variables := map[string]any{}
	if id != "" {
		variables["id"] = id
	} else {
		variables["login"] = login
	}
	data, err := c.do(ctx, opGetChannel, variables, false, false)
	if err != nil {
		return nil, err
	}
	var channel Channel
	if err := decodeObject(data, "channel", &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetVideo looks up a single video by id
func (c *Client) GetVideo(ctx context.Context, id string) (*Video, error) {
	data, err := c.do(ctx, opGetVideo, map[string]any{"id": id}, false, false)
	if err != nil {
		return nil, err
	}
	var video Video
	if err := decodeObject(data, "video", &video); err != nil {
		return nil, err
	}
	return &video, nil
}

// GetClip looks up a single clip by slug
func (c *Client) GetClip(ctx context.Context, slug string) (*Clip, error) {
	data, err := c.do(ctx, opGetClip, map[string]any{"slug": slug}, false, false)
	if err != nil {
		return nil, err
	}
	var clip Clip
	if err := decodeObject(data, "clip", &clip); err != nil {
		return nil, err
	}
	return &clip, nil
}

type pageEnvelope struct {
	Edges []struct {
		Node   json.RawMessage `json:"node"`
		Cursor string          `json:"cursor"`
	} `json:"edges"`
	PageInfo struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"pageInfo"`
}

// decodePage unmarshals one paginated listing. The returned cursor is the
// last edge's cursor when another page exists, else empty.
func decodePage(data json.RawMessage, key string, appendNode func(json.RawMessage) error) (hasNextPage bool, cursor string, err error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return false, "", &APIError{Body: string(data)}
	}
	raw, ok := wrapper[key]
	if !ok || string(raw) == "null" {
		return false, "", ErrNotFound
	}
	var page pageEnvelope
	if err := json.Unmarshal(raw, &page); err != nil {
		return false, "", &APIError{Body: string(data)}
	}
	for _, edge := range page.Edges {
		if err := appendNode(edge.Node); err != nil {
			return false, "", &APIError{Body: string(data)}
		}
	}
	if page.PageInfo.HasNextPage && len(page.Edges) > 0 {
		cursor = page.Edges[len(page.Edges)-1].Cursor
	}
	return page.PageInfo.HasNextPage, cursor, nil
}

// GetChannelVideos returns one page of a channel's videos. The call is
// integrity-attested.
func (c *Client) GetChannelVideos(ctx context.Context, login string, limit int, cursor string) (*VideoList, error) {
	if limit <= 0 {
		limit = DefaultLoadLimit
	}
	variables := map[string]any{"login": login, "limit": limit, "cursor": cursor}
	data, err := c.do(ctx, opGetChannelVideos, variables, true, false)
	if err != nil {
		return nil, err
	}
	list := &VideoList{}
	list.HasNextPage, list.Cursor, err = decodePage(data, "videos", func(node json.RawMessage) error {
		var video Video
		if err := json.Unmarshal(node, &video); err != nil {
			return err
		}
		list.Items = append(list.Items, video)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetChannelClips returns one page of a channel's clips. The call is
// integrity-attested.
func (c *Client) GetChannelClips(ctx context.Context, login string, limit int, cursor string) (*ClipList, error) {
	if limit <= 0 {
		limit = DefaultLoadLimit
	}
	variables := map[string]any{"login": login, "limit": limit, "cursor": cursor}
	data, err := c.do(ctx, opGetChannelClips, variables, true, false)
	if err != nil {
		return nil, err
	}
	list := &ClipList{}
	list.HasNextPage, list.Cursor, err = decodePage(data, "clips", func(node json.RawMessage) error {
		var clip Clip
		if err := json.Unmarshal(node, &clip); err != nil {
			return err
		}
		list.Items = append(list.Items, clip)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// decodeToken unmarshals one playback access token payload
func decodeToken(data json.RawMessage, key string) (*PlaybackAccessToken, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, &APIError{Body: string(data)}
	}
	raw, ok := wrapper[key]
	if !ok || string(raw) == "null" {
		return nil, ErrNotFound
	}
	var token PlaybackAccessToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, &APIError{Body: string(data)}
	}
	if token.Value == "" {
		return nil, ErrNotFound
	}
	return &token, nil
}

// GetStreamPlaybackAccessToken requests a grant for a live channel. The call
// is integrity-attested and authenticated.
func (c *Client) GetStreamPlaybackAccessToken(ctx context.Context, login string) (*PlaybackAccessToken, error) {
	data, err := c.do(ctx, opStreamPlaybackAccessToken, map[string]any{"login": login}, true, true)
	if err != nil {
		return nil, err
	}
	return decodeToken(data, "streamPlaybackAccessToken")
}

// GetVideoPlaybackAccessToken requests a grant for a past broadcast
func (c *Client) GetVideoPlaybackAccessToken(ctx context.Context, id string) (*PlaybackAccessToken, error) {
	data, err := c.do(ctx, opVideoPlaybackAccessToken, map[string]any{"id": id}, true, true)
	if err != nil {
		return nil, err
	}
	return decodeToken(data, "videoPlaybackAccessToken")
}

// GetClipPlaybackAccessToken requests a grant for a clip
func (c *Client) GetClipPlaybackAccessToken(ctx context.Context, slug string) (*PlaybackAccessToken, error) {
	data, err := c.do(ctx, opClipPlaybackAccessToken, map[string]any{"slug": slug}, true, true)
	if err != nil {
		return nil, err
	}
	return decodeToken(data, "clipPlaybackAccessToken")
}
