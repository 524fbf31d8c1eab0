package encode

// Package encode wraps the external media post-processing tooling (ffmpeg,
// ffprobe): container remux, audio unmute re-encode, and progress reporting
// in processed media seconds.
