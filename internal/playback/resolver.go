package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/vodgrab/vodgrab/internal/catalog"
	"github.com/vodgrab/vodgrab/internal/model"
)

// DefaultPlaylistBase is the media edge serving playlist manifests
const DefaultPlaylistBase = "https://usher.example.tv"

// Access is a time-limited playback grant: the manifest (or direct media)
// URL plus the token that authorizes it
type Access struct {
	URL       string
	Token     string
	Signature string
	Expiry    time.Time
}

// TokenAPI is the slice of the catalog client the resolver needs
type TokenAPI interface {
	GetStreamPlaybackAccessToken(ctx context.Context, login string) (*catalog.PlaybackAccessToken, error)
	GetVideoPlaybackAccessToken(ctx context.Context, id string) (*catalog.PlaybackAccessToken, error)
	GetClipPlaybackAccessToken(ctx context.Context, slug string) (*catalog.PlaybackAccessToken, error)
}

// Resolver turns a content descriptor into a playback access grant. Tokens
// are never cached: every call requests a fresh grant, so live re-entry
// always re-resolves.
type Resolver struct {
	api          TokenAPI
	attestor     catalog.Attestor
	playlistBase string
}

// NewResolver creates a resolver. attestor may be nil when the service does
// not require integrity attestation.
func NewResolver(api TokenAPI, attestor catalog.Attestor) *Resolver {
	return &Resolver{api: api, attestor: attestor, playlistBase: DefaultPlaylistBase}
}

// SetPlaylistBase overrides the media edge base URL
func (r *Resolver) SetPlaylistBase(base string) {
	r.playlistBase = base
}

// Resolve obtains an access grant for the descriptor. On an integrity
// rejection the attestation is refreshed once and the request retried
// exactly once before the error is surfaced.
func (r *Resolver) Resolve(ctx context.Context, descriptor model.ContentDescriptor) (*Access, error) {
	token, err := r.requestToken(ctx, descriptor)
	if errors.Is(err, catalog.ErrIntegrity) && r.attestor != nil {
		log.Printf("Integrity rejected for %s %s, refreshing attestation", descriptor.Kind, descriptor.ID)
		if refreshErr := r.attestor.Refresh(ctx); refreshErr != nil {
			return nil, fmt.Errorf("playback: refresh attestation: %w", refreshErr)
		}
		token, err = r.requestToken(ctx, descriptor)
	}
	if err != nil {
		return nil, err
	}
	return r.buildAccess(descriptor, token), nil
}

func (r *Resolver) requestToken(ctx context.Context, descriptor model.ContentDescriptor) (*catalog.PlaybackAccessToken, error) {
	switch descriptor.Kind {
	case model.KindChannel:
		return r.api.GetStreamPlaybackAccessToken(ctx, descriptor.ID)
	case model.KindVideo:
		return r.api.GetVideoPlaybackAccessToken(ctx, descriptor.ID)
	case model.KindClip:
		return r.api.GetClipPlaybackAccessToken(ctx, descriptor.ID)
	default:
		return nil, fmt.Errorf("playback: unknown content kind %q", descriptor.Kind)
	}
}

func (r *Resolver) buildAccess(descriptor model.ContentDescriptor, token *catalog.PlaybackAccessToken) *Access {
	access := &Access{Token: token.Value, Signature: token.Signature, Expiry: token.Expiry}
	query := url.Values{}
	query.Set("token", token.Value)
	query.Set("sig", token.Signature)
	if descriptor.RequestedQuality != "" {
		query.Set("quality", descriptor.RequestedQuality)
	}

	switch descriptor.Kind {
	case model.KindChannel:
		access.URL = fmt.Sprintf("%s/api/channel/hls/%s.m3u8?%s", r.playlistBase, descriptor.ID, query.Encode())
	case model.KindVideo:
		access.URL = fmt.Sprintf("%s/vod/%s.m3u8?%s", r.playlistBase, descriptor.ID, query.Encode())
	case model.KindClip:
		// Clip grants carry the direct media URL
		access.URL = fmt.Sprintf("%s?%s", token.SourceURL, query.Encode())
	}
	return access
}
