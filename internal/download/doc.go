package download

// Package download implements the core download pipeline: the per-task stage
// machine (prepare, download, wait, update, encode) and the scheduler that
// owns the task queue, the concurrency limit, and priority promotion.
// Pause and terminate are cooperative, honored at segment boundaries and
// stage transitions.
