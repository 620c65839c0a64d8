package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edunote/edunote/internal/llm"
	"github.com/edunote/edunote/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, chat llm.Client, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, chat)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(IdentityMiddleware)

	// Assistant conversation.
	r.Post("/chat", h.Chat)
	r.Post("/summarize", h.Summarize)

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Review scheduling.
	r.Get("/reviews/due", h.DueNotes)
	r.Post("/notes/{id}/review", h.CompleteReview)

	// Folders.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Put("/folders/{id}", h.RenameFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
