package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/llm"
	"github.com/edunote/edunote/internal/models"
	"github.com/edunote/edunote/internal/noteservice"
	"github.com/edunote/edunote/internal/review"
)

// Handler holds API route handlers.
type Handler struct {
	svc  *noteservice.Service
	chat llm.Client
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, chat llm.Client) *Handler {
	return &Handler{svc: svc, chat: chat}
}

// Chat handles POST /api/chat.
//
//	@Summary		Continue an assistant conversation
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Conversation so far"
//	@Success		200		{object}	ChatResponse
//	@Failure		400		{object}	errResponse
//	@Router			/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	messages, ok := decodeChat(w, r)
	if !ok {
		return
	}
	reply, err := h.chat.Chat(r.Context(), messages)
	if err != nil {
		slog.Error("chat completion failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("assistant unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// Summarize handles POST /api/summarize.
//
//	@Summary		Summarize a conversation into note material
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Conversation to summarize"
//	@Success		200		{object}	SummarizeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/summarize [post]
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	messages, ok := decodeChat(w, r)
	if !ok {
		return
	}
	summary, err := h.chat.Summarize(r.Context(), messages)
	if err != nil {
		slog.Error("summarize failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("assistant unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, SummarizeResponse{Summary: summary})
}

func decodeChat(w http.ResponseWriter, r *http.Request) ([]llm.Message, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("messages are required"))
		return nil, false
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("message content must not be empty"))
			return nil, false
		}
	}
	return req.Messages, true
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note; its review schedule is seeded from the creation time
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), uid, req.FolderID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusBadRequest, errorBody("folder not found"))
			return
		}
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDetail(note))
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List the caller's notes with optional folder filter and pagination
//	@Tags			notes
//	@Produce		json
//	@Param			folder	query		string	false	"Folder id"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	notes, total, err := h.svc.ListNotes(r.Context(), uid, q.Get("folder"), limit, offset)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: toNoteListItems(notes), Total: total})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toNoteDetail(note))
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Edit a note's title, content, or folder (never its schedule)
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Note id"
//	@Param			If-Match	header	string				false	"Content checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Updated fields"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and content are required"))
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), uid, chi.URLParam(r, "id"), req.Title, req.Content, req.FolderID, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toNoteDetail(note))
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteNote(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DueNotes handles GET /api/reviews/due.
//
//	@Summary		List the caller's notes that are due for review right now
//	@Tags			reviews
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/reviews/due [get]
func (h *Handler) DueNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	notes, err := h.svc.DueNotes(r.Context(), uid)
	if err != nil {
		slog.Error("due notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: toNoteListItems(notes), Total: len(notes)})
}

// CompleteReview handles POST /api/notes/{id}/review.
//
// One call consumes exactly one due checkpoint. A note whose earliest
// checkpoint is still in the future is rejected with 409 and left
// unchanged; an exhausted schedule reports status "empty" with 200.
//
//	@Summary		Mark a note as reviewed, consuming its earliest due checkpoint
//	@Tags			reviews
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	ReviewResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	ReviewResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/review [post]
func (h *Handler) CompleteReview(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	out, err := h.svc.CompleteReview(r.Context(), uid, id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("review conflict, retry"))
		default:
			slog.Error("complete review failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	resp := ReviewResponse{
		Status:   string(out.Status),
		Schedule: nonNilTimes(out.Schedule.Entries),
		NextDue:  nextDue(out.Schedule),
	}
	switch out.Status {
	case review.StatusAdvanced:
		reviewedAt := out.ReviewedAt
		resp.ReviewedAt = &reviewedAt
		writeJSON(w, http.StatusOK, resp)
	case review.StatusNotYetDue:
		writeJSON(w, http.StatusConflict, resp)
	default: // StatusEmpty: informational no-op, not a fault
		writeJSON(w, http.StatusOK, resp)
	}
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	folder, err := h.svc.CreateFolder(r.Context(), uid, req.Name)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("folder already exists"))
			return
		}
		slog.Error("create folder failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// ListFolders handles GET /api/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	folders, err := h.svc.ListFolders(r.Context(), uid)
	if err != nil {
		slog.Error("list folders failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// RenameFolder handles PUT /api/folders/{id}.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	err := h.svc.RenameFolder(r.Context(), uid, chi.URLParam(r, "id"), req.Name)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("folder already exists"))
	default:
		slog.Error("rename folder failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// DeleteFolder handles DELETE /api/folders/{id}. Notes in the folder are
// unfiled, not deleted.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteFolder(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete folder failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
