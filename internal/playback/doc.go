package playback

// Package playback resolves content descriptors into time-limited playback
// access grants, including the single refresh-and-retry pass on integrity
// rejections.
