package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edunote/edunote/internal/llm"
	"github.com/edunote/edunote/internal/noteservice"
	"github.com/edunote/edunote/internal/review"
	"github.com/edunote/edunote/internal/testutil"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time  { return c.t }
func (c *clock) set(t time.Time) { c.t = t }

// stubLLM is a canned chat-completion client for handler tests.
type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Summarize(_ context.Context, _ []llm.Message) (string, error) {
	return s.reply, s.err
}

// testEnv sets up a temp SQLite DB, service with a pinned clock, and router.
// authToken == "" means auth disabled.
func testEnv(t *testing.T, authToken string) (http.Handler, *clock) {
	t.Helper()
	return testEnvLLM(t, authToken, &stubLLM{reply: "stub reply"})
}

func testEnvLLM(t *testing.T, authToken string, chat llm.Client) (http.Handler, *clock) {
	t.Helper()
	db := testutil.TestDB(t)
	clk := &clock{t: t0}
	svc := noteservice.NewService(db, review.DefaultOffsets, noteservice.WithClock(clk.now))
	router := NewRouter(svc, chat, authToken != "", authToken, nil)
	return router, clk
}

func doJSON(t *testing.T, router http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, user, title string) NoteDetail {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/notes", user,
		map[string]string{"title": title, "content": "body of " + title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	return note
}

func TestCreateNote_SeedsScheduleAndReturnsDetail(t *testing.T) {
	router, _ := testEnv(t, "")

	note := createNote(t, router, "alice", "Photosynthesis")
	if note.ID == "" || note.Title != "Photosynthesis" {
		t.Errorf("note = %+v", note)
	}
	if len(note.Schedule) != 4 {
		t.Fatalf("schedule = %v, want 4 checkpoints", note.Schedule)
	}
	if note.NextDue == nil || !note.NextDue.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("next_due = %v, want T0+10m", note.NextDue)
	}
}

func TestCreateNote_RequiresIdentity(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", "",
		map[string]string{"title": "t", "content": "c"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no identity = %d, want 401", w.Code)
	}
}

func TestGetNote_OwnerScoped(t *testing.T) {
	router, _ := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	w := doJSON(t, router, http.MethodGet, "/notes/"+note.ID, "alice", nil)
	if w.Code != http.StatusOK {
		t.Errorf("own note = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/notes/"+note.ID, "mallory", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("other user's note = %d, want 404", w.Code)
	}
}

func TestUpdateNote_WithOptimisticLocking(t *testing.T) {
	router, _ := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	update := map[string]string{"title": "t", "content": "v2"}
	req := httptest.NewRequest(http.MethodPut, "/notes/"+note.ID, jsonBody(t, update))
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("If-Match", note.Checksum)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with fresh checksum = %d, body = %s", w.Code, w.Body.String())
	}
	var updated NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if len(updated.Schedule) != 4 {
		t.Errorf("edit disturbed schedule: %v", updated.Schedule)
	}

	// Stale checksum is rejected.
	req = httptest.NewRequest(http.MethodPut, "/notes/"+note.ID, jsonBody(t, update))
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("If-Match", note.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale checksum = %d, want 409", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	router, _ := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	w := doJSON(t, router, http.MethodDelete, "/notes/"+note.ID, "alice", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/notes/"+note.ID, "alice", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestDueNotes_FlowAcrossCheckpoints(t *testing.T) {
	router, clk := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	// Before the first checkpoint: empty due list.
	w := doJSON(t, router, http.MethodGet, "/reviews/due", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("due = %d", w.Code)
	}
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Fatalf("due before checkpoint = %d", list.Total)
	}

	// One second past the first checkpoint: the note surfaces.
	clk.set(t0.Add(10*time.Minute + time.Second))
	w = doJSON(t, router, http.MethodGet, "/reviews/due", "alice", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Notes[0].ID != note.ID {
		t.Fatalf("due list = %+v", list)
	}

	// Completing the review consumes exactly the 10-minute checkpoint.
	w = doJSON(t, router, http.MethodPost, "/notes/"+note.ID+"/review", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("review = %d, body = %s", w.Code, w.Body.String())
	}
	var rev ReviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rev)
	if rev.Status != "advanced" {
		t.Fatalf("status = %q", rev.Status)
	}
	if rev.ReviewedAt == nil || !rev.ReviewedAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("reviewed_at = %v, want T0+10m", rev.ReviewedAt)
	}
	if len(rev.Schedule) != 3 {
		t.Errorf("remaining schedule = %v", rev.Schedule)
	}

	// A moment later the note is gone from the due list again.
	clk.set(t0.Add(10*time.Minute + 2*time.Second))
	w = doJSON(t, router, http.MethodGet, "/reviews/due", "alice", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("due right after review = %d", list.Total)
	}
}

func TestCompleteReview_NotYetDueRejected(t *testing.T) {
	router, _ := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	w := doJSON(t, router, http.MethodPost, "/notes/"+note.ID+"/review", "alice", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("early review = %d, want 409", w.Code)
	}
	var rev ReviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rev)
	if rev.Status != "not_yet_due" {
		t.Errorf("status = %q", rev.Status)
	}
	if len(rev.Schedule) != 4 {
		t.Errorf("rejection altered schedule: %v", rev.Schedule)
	}
}

func TestCompleteReview_ExhaustedReportsEmpty(t *testing.T) {
	router, clk := testEnv(t, "")
	note := createNote(t, router, "alice", "t")

	clk.set(t0.AddDate(0, 2, 0))
	for i := 0; i < 4; i++ {
		w := doJSON(t, router, http.MethodPost, "/notes/"+note.ID+"/review", "alice", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("advance %d = %d", i, w.Code)
		}
	}

	w := doJSON(t, router, http.MethodPost, "/notes/"+note.ID+"/review", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("exhausted review = %d, want 200", w.Code)
	}
	var rev ReviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rev)
	if rev.Status != "empty" {
		t.Errorf("status = %q, want empty", rev.Status)
	}
}

func TestChatEndpoint(t *testing.T) {
	router, _ := testEnvLLM(t, "", &stubLLM{reply: "hello there"})

	w := doJSON(t, router, http.MethodPost, "/chat", "",
		map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}})
	if w.Code != http.StatusOK {
		t.Fatalf("chat = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Reply != "hello there" {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestChatEndpoint_EmptyMessages(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/chat", "", map[string]any{"messages": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty messages = %d, want 400", w.Code)
	}
}

func TestChatEndpoint_UpstreamFailure(t *testing.T) {
	router, _ := testEnvLLM(t, "", &stubLLM{err: errors.New("boom")})

	w := doJSON(t, router, http.MethodPost, "/chat", "",
		map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}})
	if w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure = %d, want 502", w.Code)
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	router, _ := testEnvLLM(t, "", &stubLLM{reply: "a tidy summary"})

	w := doJSON(t, router, http.MethodPost, "/summarize", "",
		map[string]any{"messages": []map[string]string{{"role": "user", "content": "explain mitosis"}}})
	if w.Code != http.StatusOK {
		t.Fatalf("summarize = %d", w.Code)
	}
	var resp SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Summary != "a tidy summary" {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestFolderEndpoints(t *testing.T) {
	router, _ := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/folders", "alice", map[string]string{"name": "biology"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create folder = %d", w.Code)
	}
	var folder struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &folder)

	// Duplicate name conflicts.
	w = doJSON(t, router, http.MethodPost, "/folders", "alice", map[string]string{"name": "biology"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate folder = %d, want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/folders/"+folder.ID, "alice", map[string]string{"name": "bio"})
	if w.Code != http.StatusNoContent {
		t.Errorf("rename = %d, want 204", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/folders/"+folder.ID, "alice", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete folder = %d, want 204", w.Code)
	}
}

func TestAuthMiddleware_TokenMode(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	// Missing token.
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	// Wrong token.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("Authorization", "Bearer secret123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatal(err)
	}
	return &buf
}
