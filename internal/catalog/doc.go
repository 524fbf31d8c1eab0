package catalog

// Package catalog implements the typed client for the streaming platform's
// catalog service: channel/video/clip lookups, paginated listings, and
// playback access token requests. It also defines the error taxonomy shared
// with the download pipeline.
