package api

// Package api exposes the catalog browse and download control operations
// over HTTP.
