package model

// ContentKind identifies the type of content a task downloads
type ContentKind string

const (
	// KindChannel is a live channel broadcast
	KindChannel ContentKind = "channel"

	// KindVideo is a past broadcast or upload
	KindVideo ContentKind = "video"

	// KindClip is a short clip cut from a broadcast
	KindClip ContentKind = "clip"
)

// String returns the string representation of ContentKind
func (k ContentKind) String() string {
	return string(k)
}

// IsVideo returns true for content that has a segment manifest
// (live channels and past broadcasts; clips are a single file)
func (k ContentKind) IsVideo() bool {
	return k == KindChannel || k == KindVideo
}

// IsLive returns true for content that may still be growing
func (k ContentKind) IsLive() bool {
	return k == KindChannel
}

// ContentDescriptor describes what a task downloads. It is immutable once a
// task has been created from it.
type ContentDescriptor struct {
	Kind             ContentKind
	ID               string // channel login, video id, or clip slug
	Title            string
	RequestedQuality string
}

// TaskSetup holds per-task options derived from the descriptor kind.
// Priority is the only field the scheduler may rewrite after creation.
type TaskSetup struct {
	UnmuteVideo bool
	UpdateTrack bool
	Priority    int
}

// NewTaskSetup builds task options for a descriptor. Unmute and track update
// only apply to video-like content. The priority is doubled internally so the
// scheduler has headroom for tie-break offsets; treat it as an opaque
// ordering key.
func NewTaskSetup(descriptor ContentDescriptor, unmuteVideo, updateTrack bool, priority int) TaskSetup {
	setup := TaskSetup{Priority: priority * 2}
	if descriptor.Kind.IsVideo() {
		setup.UnmuteVideo = unmuteVideo
		setup.UpdateTrack = updateTrack
	}
	return setup
}
