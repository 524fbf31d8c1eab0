package catalog

import "time"

// Channel is a broadcaster account, possibly live
type Channel struct {
	ID          string  `json:"id"`
	Login       string  `json:"login"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	Followers   int     `json:"followers"`
	IsLive      bool    `json:"is_live"`
	Stream      *Stream `json:"stream,omitempty"`
}

// Stream is a currently running live broadcast
type Stream struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Game      string    `json:"game"`
	Viewers   int       `json:"viewers"`
	StartedAt time.Time `json:"started_at"`
}

// Video is a past broadcast or upload
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Game        string    `json:"game"`
	Owner       string    `json:"owner"`
	Duration    int       `json:"duration"` // seconds
	Views       int       `json:"views"`
	PublishedAt time.Time `json:"published_at"`
}

// Clip is a short cut from a broadcast, addressed by slug
type Clip struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Game      string    `json:"game"`
	Owner     string    `json:"owner"`
	Duration  int       `json:"duration"` // seconds
	Views     int       `json:"views"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
}

// VideoList is one page of a channel's videos. Cursor is the last item's
// opaque cursor when more pages exist, else empty.
type VideoList struct {
	Items       []Video
	HasNextPage bool
	Cursor      string
}

// ClipList is one page of a channel's clips
type ClipList struct {
	Items       []Clip
	HasNextPage bool
	Cursor      string
}

// PlaybackAccessToken is a short-lived grant authorizing media retrieval.
// For clips the grant carries the direct source URL instead of a playlist.
type PlaybackAccessToken struct {
	Value     string    `json:"value"`
	Signature string    `json:"signature"`
	Expiry    time.Time `json:"expiry"`
	SourceURL string    `json:"source_url,omitempty"`
}
