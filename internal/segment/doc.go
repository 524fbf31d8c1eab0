package segment

// Package segment retrieves media manifests and streams segment data to
// disk. Segment writes are atomic (temp file + rename) and idempotent by
// segment index, so a task can resume a partially fetched list without
// re-downloading completed segments.
