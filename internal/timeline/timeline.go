// Package timeline provides an append-only, timestamped record of the named
// stages inside one submission attempt. It exists purely for diagnostics and
// failure classification; nothing in the control path reads it back.
package timeline

import "time"

// Record is a single tagged event inside an attempt.
type Record struct {
	Stage       string         `json:"stage"`
	TimestampMs int64          `json:"timestampMs"`
	Details     map[string]any `json:"details,omitempty"`
}

// Timeline is an ordered, append-only sequence of Records scoped to one
// attempt. The zero value is ready to use. It is not safe for concurrent
// appends; each attempt owns exactly one Timeline.
type Timeline struct {
	records []Record
	now     func() time.Time
}

// New returns an empty Timeline using the wall clock.
func New() *Timeline {
	return &Timeline{now: time.Now}
}

// NewWithClock returns a Timeline driven by the given clock. Tests use this
// to make elapsed-time assertions deterministic.
func NewWithClock(now func() time.Time) *Timeline {
	return &Timeline{now: now}
}

// Mark appends a stage with no details.
func (t *Timeline) Mark(stage string) {
	t.MarkDetails(stage, nil)
}

// MarkDetails appends a stage with the given details map. The map is stored
// as-is; callers must not mutate it afterwards.
func (t *Timeline) MarkDetails(stage string, details map[string]any) {
	clock := t.now
	if clock == nil {
		clock = time.Now
	}
	t.records = append(t.records, Record{
		Stage:       stage,
		TimestampMs: clock().UnixMilli(),
		Details:     details,
	})
}

// Extend appends externally produced records (e.g. the debug timeline
// returned by the in-page protocol) preserving their original timestamps.
func (t *Timeline) Extend(records []Record) {
	t.records = append(t.records, records...)
}

// Records returns the recorded sequence. The returned slice is the live
// backing array; callers treat it as read-only.
func (t *Timeline) Records() []Record {
	return t.records
}

// Has reports whether any record carries the given stage name.
func (t *Timeline) Has(stage string) bool {
	for _, r := range t.records {
		if r.Stage == stage {
			return true
		}
	}
	return false
}

// RelativeElapsed returns the record's offset in milliseconds from the first
// record. It returns 0 for an out-of-range index or an empty timeline.
func (t *Timeline) RelativeElapsed(i int) int64 {
	if i < 0 || i >= len(t.records) || len(t.records) == 0 {
		return 0
	}
	return t.records[i].TimestampMs - t.records[0].TimestampMs
}

// Len returns the number of recorded stages.
func (t *Timeline) Len() int { return len(t.records) }
