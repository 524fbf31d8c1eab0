package model

import (
	"fmt"
	"sync"
)

// GetPercentage returns part/whole as a percentage. A zero whole yields 0
// rather than dividing by zero. Values above 100 are not clamped.
func GetPercentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// FormatByteSize renders a byte count as a short human-readable string
// (e.g. "0.0B", "12.3KB", "1.5GB")
func FormatByteSize(n int64) string {
	const unit = 1024
	size := float64(n)
	for _, suffix := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < unit {
			return fmt.Sprintf("%.1f%s", size, suffix)
		}
		size /= unit
	}
	return fmt.Sprintf("%.1fPB", size)
}

// ProgressSnapshot is a point-in-time copy of progress counters with derived
// percentages, safe to hand to observers
type ProgressSnapshot struct {
	File          int     `json:"file"`
	TotalFiles    int     `json:"total_files"`
	Seconds       float64 `json:"seconds"`
	TotalSeconds  float64 `json:"total_seconds"`
	ByteSize      int64   `json:"byte_size"`
	TotalByteSize int64   `json:"total_byte_size"`
	Size          string  `json:"size"`
	TotalSize     string  `json:"total_size"`

	FileProgress     float64 `json:"file_progress"`
	TimeProgress     float64 `json:"time_progress"`
	ByteSizeProgress float64 `json:"byte_size_progress"`
}

// Progress aggregates file-count, byte, and time counters for one task.
// Counters are written by the task's worker and read from any goroutine;
// percentages are recomputed on read. byteSize and file never decrease while
// a task runs, including across a pause/resume cycle.
type Progress struct {
	mu            sync.Mutex
	file          int
	totalFiles    int
	seconds       float64
	totalSeconds  float64
	byteSize      int64
	totalByteSize int64
}

// NewProgress creates an empty progress tracker
func NewProgress() *Progress {
	return &Progress{}
}

// AdvanceFile counts one more completed segment file
func (p *Progress) AdvanceFile() {
	p.mu.Lock()
	p.file++
	p.mu.Unlock()
}

// SetTotalFiles sets the expected segment count
func (p *Progress) SetTotalFiles(n int) {
	p.mu.Lock()
	p.totalFiles = n
	p.mu.Unlock()
}

// AddBytes adds transferred bytes to the byte counter
func (p *Progress) AddBytes(n int64) {
	p.mu.Lock()
	p.byteSize += n
	p.mu.Unlock()
}

// AddTotalBytes grows the expected byte total as segment sizes become known
func (p *Progress) AddTotalBytes(n int64) {
	p.mu.Lock()
	p.totalByteSize += n
	p.mu.Unlock()
}

// SetSeconds records processed media time during encoding
func (p *Progress) SetSeconds(s float64) {
	p.mu.Lock()
	p.seconds = s
	p.mu.Unlock()
}

// SetTotalSeconds records the media duration for encoding progress
func (p *Progress) SetTotalSeconds(s float64) {
	p.mu.Lock()
	p.totalSeconds = s
	p.mu.Unlock()
}

// Snapshot returns a copy of the counters with derived percentages
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{
		File:          p.file,
		TotalFiles:    p.totalFiles,
		Seconds:       p.seconds,
		TotalSeconds:  p.totalSeconds,
		ByteSize:      p.byteSize,
		TotalByteSize: p.totalByteSize,
		Size:          FormatByteSize(p.byteSize),
		TotalSize:     FormatByteSize(p.totalByteSize),

		FileProgress:     GetPercentage(float64(p.file), float64(p.totalFiles)),
		TimeProgress:     GetPercentage(p.seconds, p.totalSeconds),
		ByteSizeProgress: GetPercentage(float64(p.byteSize), float64(p.totalByteSize)),
	}
}
