package model

// Package model defines domain data structures used across the app: content
// descriptors, task setup options, the pause/terminate state flags, the task
// stage status, and the progress tracker. Structures are designed for safe
// concurrent reads and explicit state transitions.
