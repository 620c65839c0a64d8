// Package review implements the spaced-review schedule attached to a note:
// seeding checkpoints from the creation time, answering due-status queries,
// and consuming checkpoints as reviews are completed.
//
// All functions are pure value transformations. The current time is always
// passed in by the caller, never read from the wall clock, so due-status is
// deterministic and testable.
package review

import (
	"fmt"
	"time"
)

// Offsets is the ordered list of durations after note creation at which
// review checkpoints are placed. It must be non-empty and non-decreasing;
// violations are configuration errors caught at load time, not at runtime.
type Offsets []time.Duration

// DefaultOffsets is the canonical review ladder: ten minutes, one day,
// one week, thirty days after creation.
var DefaultOffsets = Offsets{
	10 * time.Minute,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// Validate checks the configuration contract on offsets.
func (o Offsets) Validate() error {
	if len(o) == 0 {
		return fmt.Errorf("review: offsets must not be empty")
	}
	for i := 1; i < len(o); i++ {
		if o[i] < o[i-1] {
			return fmt.Errorf("review: offsets must be non-decreasing (offset %d is %s, before %s)", i, o[i], o[i-1])
		}
	}
	return nil
}

// Schedule is the review state of a single note: the ordered, ascending
// list of pending checkpoints. An empty Entries slice means the schedule
// is exhausted and the note is permanently not due.
//
// A Schedule is only ever consumed from the front. Entries are never
// reordered or inserted after seeding.
type Schedule struct {
	Entries []time.Time `json:"entries"`
}

// Seed produces the schedule for a note created at createdAt: one checkpoint
// per offset, preserving offset order.
func Seed(createdAt time.Time, offsets Offsets) Schedule {
	entries := make([]time.Time, len(offsets))
	for i, off := range offsets {
		entries[i] = createdAt.Add(off)
	}
	return Schedule{Entries: entries}
}

// IsDue reports whether the earliest pending checkpoint has arrived.
// The boundary is inclusive: a checkpoint exactly at now counts as due.
// An exhausted schedule is never due.
func (s Schedule) IsDue(now time.Time) bool {
	return len(s.Entries) > 0 && !s.Entries[0].After(now)
}

// NextDue returns the earliest pending checkpoint, or false when the
// schedule is exhausted.
func (s Schedule) NextDue() (time.Time, bool) {
	if len(s.Entries) == 0 {
		return time.Time{}, false
	}
	return s.Entries[0], true
}

// Exhausted reports whether no checkpoints remain.
func (s Schedule) Exhausted() bool {
	return len(s.Entries) == 0
}

// Status tags the outcome of a Complete call.
type Status string

const (
	// StatusAdvanced means the earliest due checkpoint was consumed.
	StatusAdvanced Status = "advanced"
	// StatusEmpty means the schedule was already exhausted; nothing to review.
	StatusEmpty Status = "empty"
	// StatusNotYetDue means the earliest checkpoint is still in the future;
	// the schedule is left unchanged.
	StatusNotYetDue Status = "not_yet_due"
)

// Result is the tagged outcome of completing a review.
type Result struct {
	Status Status
	// ReviewedAt is the checkpoint that was consumed. Only set when
	// Status is StatusAdvanced.
	ReviewedAt time.Time
	// Schedule is the resulting schedule. Unchanged unless advanced.
	Schedule Schedule
}

// Complete consumes the earliest checkpoint if it is due at now.
//
// Exactly one checkpoint is consumed per call, even when several have
// become due; catching up a neglected note takes one call per overdue
// checkpoint. This keeps each user action accountable for exactly one
// checkpoint.
//
// The receiver is never mutated; the advanced schedule is returned with
// its own backing storage.
func (s Schedule) Complete(now time.Time) Result {
	if len(s.Entries) == 0 {
		return Result{Status: StatusEmpty, Schedule: s}
	}
	next := s.Entries[0]
	if next.After(now) {
		return Result{Status: StatusNotYetDue, Schedule: s}
	}
	remaining := make([]time.Time, len(s.Entries)-1)
	copy(remaining, s.Entries[1:])
	return Result{
		Status:     StatusAdvanced,
		ReviewedAt: next,
		Schedule:   Schedule{Entries: remaining},
	}
}

// Scheduled is anything carrying a review schedule.
type Scheduled interface {
	ReviewSchedule() Schedule
}

// ListDue filters items down to those whose schedule is due at now,
// preserving input order. It is a pure filter: no schedule is modified,
// and repeated calls with the same inputs return the same items.
func ListDue[T Scheduled](items []T, now time.Time) []T {
	var due []T
	for _, it := range items {
		if it.ReviewSchedule().IsDue(now) {
			due = append(due, it)
		}
	}
	return due
}
