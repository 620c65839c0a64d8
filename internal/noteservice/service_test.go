package noteservice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/noteservice"
	"github.com/edunote/edunote/internal/review"
	"github.com/edunote/edunote/internal/testutil"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// clock is a settable time source for pinning "now" in tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) set(t time.Time) { c.t = t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(t *testing.T) (*noteservice.Service, *clock) {
	t.Helper()
	db := testutil.TestDB(t)
	clk := &clock{t: t0}
	svc := noteservice.NewService(db, review.DefaultOffsets, noteservice.WithClock(clk.now))
	return svc, clk
}

func TestCreateNote_SeedsSchedule(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "Mitosis", "Cell division summary")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID == "" {
		t.Error("note has no id")
	}
	want := []time.Time{
		t0.Add(10 * time.Minute),
		t0.Add(24 * time.Hour),
		t0.Add(7 * 24 * time.Hour),
		t0.Add(30 * 24 * time.Hour),
	}
	if len(note.Schedule.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(note.Schedule.Entries), len(want))
	}
	for i, w := range want {
		if !note.Schedule.Entries[i].Equal(w) {
			t.Errorf("entries[%d] = %v, want %v", i, note.Schedule.Entries[i], w)
		}
	}
}

func TestCreateNote_UnknownFolderRejected(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateNote(context.Background(), "alice", "ghost", "t", "c")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("create with unknown folder = %v, want ErrNotFound", err)
	}
}

func TestDueNotes_BoundaryAndIdempotence(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "t", "c")
	if err != nil {
		t.Fatal(err)
	}

	// One second before the first checkpoint: nothing due.
	clk.set(t0.Add(10*time.Minute - time.Second))
	due, err := svc.DueNotes(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("due before checkpoint = %d notes", len(due))
	}

	// Exactly at the checkpoint: due (inclusive boundary).
	clk.set(t0.Add(10 * time.Minute))
	due, _ = svc.DueNotes(ctx, "alice")
	if len(due) != 1 || due[0].ID != note.ID {
		t.Fatalf("due at checkpoint = %v", due)
	}

	// Repeated polls do not consume anything.
	for i := 0; i < 3; i++ {
		again, _ := svc.DueNotes(ctx, "alice")
		if len(again) != 1 {
			t.Fatalf("poll %d returned %d notes", i, len(again))
		}
	}
}

func TestDueNotes_ScopedToOwner(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "alice", "", "t", "c"); err != nil {
		t.Fatal(err)
	}
	clk.advance(time.Hour)

	due, err := svc.DueNotes(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("bob sees alice's due notes")
	}
}

func TestCompleteReview_AdvanceAndReject(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "t", "c")
	if err != nil {
		t.Fatal(err)
	}

	// Not yet due: rejected, schedule untouched.
	out, err := svc.CompleteReview(ctx, "alice", note.ID)
	if err != nil {
		t.Fatalf("CompleteReview: %v", err)
	}
	if out.Status != review.StatusNotYetDue {
		t.Fatalf("status = %q, want not_yet_due", out.Status)
	}
	got, _ := svc.GetNote(ctx, "alice", note.ID)
	if len(got.Schedule.Entries) != 4 {
		t.Errorf("rejection altered schedule: %v", got.Schedule.Entries)
	}

	// Past the first checkpoint: advanced, reviewed date recorded.
	clk.set(t0.Add(10*time.Minute + time.Second))
	out, err = svc.CompleteReview(ctx, "alice", note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != review.StatusAdvanced {
		t.Fatalf("status = %q, want advanced", out.Status)
	}
	if !out.ReviewedAt.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("reviewedAt = %v, want consumed checkpoint", out.ReviewedAt)
	}
	got, _ = svc.GetNote(ctx, "alice", note.ID)
	if len(got.Schedule.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(got.Schedule.Entries))
	}
	if len(got.Reviewed) != 1 || !got.Reviewed[0].Equal(t0.Add(10*time.Minute)) {
		t.Errorf("reviewed history = %v", got.Reviewed)
	}

	// Immediately after the advance, nothing is due until the next day.
	due, _ := svc.DueNotes(ctx, "alice")
	if len(due) != 0 {
		t.Errorf("note still due right after review")
	}
}

func TestCompleteReview_OnePerCallCatchUp(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "t", "c")
	if err != nil {
		t.Fatal(err)
	}

	// 40 days later both week and month checkpoints are overdue; each call
	// consumes exactly one.
	clk.set(t0.AddDate(0, 0, 40))
	consumed := make([]time.Time, 0, 4)
	for i := 0; i < 4; i++ {
		out, err := svc.CompleteReview(ctx, "alice", note.ID)
		if err != nil {
			t.Fatal(err)
		}
		if out.Status != review.StatusAdvanced {
			t.Fatalf("call %d: status = %q", i, out.Status)
		}
		consumed = append(consumed, out.ReviewedAt)
	}
	for i := 1; i < len(consumed); i++ {
		if !consumed[i].After(consumed[i-1]) {
			t.Errorf("checkpoints consumed out of order: %v", consumed)
		}
	}

	// Fifth call: schedule exhausted, informational no-op.
	out, err := svc.CompleteReview(ctx, "alice", note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != review.StatusEmpty {
		t.Fatalf("post-exhaustion status = %q, want empty", out.Status)
	}

	// Exhaustion is terminal: never due again.
	clk.set(t0.AddDate(5, 0, 0))
	due, _ := svc.DueNotes(ctx, "alice")
	if len(due) != 0 {
		t.Error("exhausted note reappeared in due list")
	}
}

func TestCompleteReview_ConcurrentCallers(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "t", "c")
	if err != nil {
		t.Fatal(err)
	}

	// All four checkpoints are overdue. Four racing callers must each end
	// up consuming a distinct one; the conditional commit rejects stale
	// writers, who re-read and take the next checkpoint instead.
	clk.set(t0.AddDate(0, 0, 40))

	consumed := make(chan time.Time, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				out, err := svc.CompleteReview(ctx, "alice", note.ID)
				if errors.Is(err, apperr.ErrConflict) {
					// Retry budget exhausted under contention.
					continue
				}
				if err != nil {
					t.Errorf("CompleteReview: %v", err)
					return
				}
				if out.Status != review.StatusAdvanced {
					t.Errorf("status = %q, want advanced", out.Status)
					return
				}
				consumed <- out.ReviewedAt
				return
			}
		}()
	}
	wg.Wait()
	close(consumed)

	seen := make(map[time.Time]bool)
	for ts := range consumed {
		if seen[ts.UTC()] {
			t.Errorf("checkpoint %v consumed twice", ts)
		}
		seen[ts.UTC()] = true
	}
	if len(seen) != 4 {
		t.Fatalf("consumed %d distinct checkpoints, want 4", len(seen))
	}

	got, _ := svc.GetNote(ctx, "alice", note.ID)
	if !got.Schedule.Exhausted() {
		t.Errorf("schedule not exhausted after four reviews: %v", got.Schedule.Entries)
	}
	if len(got.Reviewed) != 4 {
		t.Errorf("reviewed history has %d entries, want 4", len(got.Reviewed))
	}
}

func TestCompleteReview_NotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CompleteReview(context.Background(), "alice", "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note = %v, want ErrNotFound", err)
	}
}

func TestUpdateNote_ChecksumConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "alice", "", "t", "v1")
	if err != nil {
		t.Fatal(err)
	}

	cs := noteservice.Checksum("v1")
	if _, err := svc.UpdateNote(ctx, "alice", note.ID, "t", "v2", "", cs); err != nil {
		t.Fatalf("update with fresh checksum: %v", err)
	}
	if _, err := svc.UpdateNote(ctx, "alice", note.ID, "t", "v3", "", cs); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("update with stale checksum = %v, want ErrConflict", err)
	}
}

func TestFolders_RoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	f, err := svc.CreateFolder(ctx, "alice", "chemistry")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	note, err := svc.CreateNote(ctx, "alice", f.ID, "t", "c")
	if err != nil {
		t.Fatalf("CreateNote in folder: %v", err)
	}

	notes, total, err := svc.ListNotes(ctx, "alice", f.ID, 0, 0)
	if err != nil || total != 1 || notes[0].ID != note.ID {
		t.Fatalf("ListNotes in folder: %v total %d", err, total)
	}

	if err := svc.DeleteFolder(ctx, "alice", f.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetNote(ctx, "alice", note.ID)
	if got.FolderID != "" {
		t.Errorf("note not unfiled after folder delete")
	}
}
