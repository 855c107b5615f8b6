package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/idempotency"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/syncer"
)

// idempotencyKeyHeader carries the client's dedup key on mutating requests.
const idempotencyKeyHeader = "Idempotency-Key"

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	searcher *search.Searcher
	guard    *idempotency.Guard
	db       *ledger.DB
	owner    string
	health   *syncer.Health
	pending  func() int
	model    string
}

// NewHandler creates a new Handler. pending reports the debouncer's
// queued-check count for the status endpoint.
func NewHandler(svc *noteservice.Service, searcher *search.Searcher, guard *idempotency.Guard,
	db *ledger.DB, owner string, health *syncer.Health, pending func() int, model string) *Handler {
	return &Handler{
		svc:      svc,
		searcher: searcher,
		guard:    guard,
		db:       db,
		owner:    owner,
		health:   health,
		pending:  pending,
		model:    model,
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note with its file content
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, content, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{Note: *note, Content: content})
}

// CreateNote handles POST /api/notes. With an Idempotency-Key header the
// request is safely retryable: a replay returns the recorded response and
// creates nothing.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string				false	"Dedup key for safe retries"
//	@Param			body			body		CreateNoteRequest	true	"Note to create"
//	@Success		201				{object}	models.Note
//	@Failure		400				{object}	errResponse
//	@Failure		409				{object}	errResponse
//	@Failure		422				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	raw, req, ok := decodeBody[CreateNoteRequest](w, r)
	if !ok {
		return
	}
	if req.Path == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and title are required"))
		return
	}

	var created *models.Note
	res, err := h.guard.Execute(r.Context(), h.owner, "POST /notes", r.Header.Get(idempotencyKeyHeader), raw,
		func(tx *sql.Tx) (int, []byte, error) {
			note, err := h.svc.CreateTx(r.Context(), tx, noteservice.CreateParams{
				Path:  req.Path,
				Title: req.Title,
				Body:  req.Body,
			})
			if err != nil {
				return 0, nil, err
			}
			created = note
			body, err := json.Marshal(note)
			return http.StatusCreated, body, err
		})
	if err != nil {
		h.writeGuardError(w, "create note", err)
		return
	}
	if created != nil && !res.Replayed {
		h.svc.Created(created)
	}
	writeRaw(w, res.Status, res.Body, res.Replayed)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note's title and body
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")
	_, req, ok := decodeBody[UpdateNoteRequest](w, r)
	if !ok {
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	note, err := h.svc.Update(r.Context(), id, req.Title, req.Body)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note, its ledger rows, and its vector
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Semantic search across embedded notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.searcher.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// CreateReminder handles POST /api/reminders, the endpoint the
// exactly-once contract was built for: clients on flaky connections retry
// it freely with the same Idempotency-Key and get exactly one reminder.
//
//	@Summary		Create a reminder
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string					false	"Dedup key for safe retries"
//	@Param			body			body		CreateReminderRequest	true	"Reminder to create"
//	@Success		201				{object}	models.Reminder
//	@Failure		400				{object}	errResponse
//	@Failure		422				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders [post]
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	raw, req, ok := decodeBody[CreateReminderRequest](w, r)
	if !ok {
		return
	}
	if req.Message == "" || req.DueAt.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("message and due_at are required"))
		return
	}
	if req.NoteID != "" {
		if _, err := h.db.GetNote(r.Context(), req.NoteID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("note_id does not exist"))
			return
		}
	}

	res, err := h.guard.Execute(r.Context(), h.owner, "POST /reminders", r.Header.Get(idempotencyKeyHeader), raw,
		func(tx *sql.Tx) (int, []byte, error) {
			rem := models.Reminder{
				ID:        ulid.Make().String(),
				OwnerID:   h.owner,
				NoteID:    req.NoteID,
				Message:   req.Message,
				DueAt:     req.DueAt,
				CreatedAt: time.Now(),
			}
			if err := h.db.InsertReminderTx(tx, rem); err != nil {
				return 0, nil, err
			}
			body, err := json.Marshal(rem)
			return http.StatusCreated, body, err
		})
	if err != nil {
		h.writeGuardError(w, "create reminder", err)
		return
	}
	writeRaw(w, res.Status, res.Body, res.Replayed)
}

// ListReminders handles GET /api/reminders.
//
//	@Summary		List reminders
//	@Tags			reminders
//	@Produce		json
//	@Success		200	{object}	ReminderListResponse
//	@Security		BearerAuth
//	@Router			/reminders [get]
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.db.ListReminders(r.Context(), h.owner)
	if err != nil {
		slog.Error("list reminders failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: reminders, Total: len(reminders)})
}

// SyncStatus handles GET /api/sync/status.
//
//	@Summary		Report watcher health and ledger counts
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncStatusResponse
//	@Security		BearerAuth
//	@Router			/sync/status [get]
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.buildStatus(r.Context())
	if err != nil {
		slog.Error("sync status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) buildStatus(ctx context.Context) (SyncStatusResponse, error) {
	tracked, err := h.db.ListTracked(ctx, h.owner)
	if err != nil {
		return SyncStatusResponse{}, err
	}
	status := SyncStatusResponse{
		WatcherReady: h.health.Ready() && h.health.Err() == nil,
		TrackedFiles: len(tracked),
		ModelVersion: h.model,
	}
	if werr := h.health.Err(); werr != nil {
		status.WatcherError = werr.Error()
	}
	if h.pending != nil {
		status.PendingChecks = h.pending()
	}
	for _, tf := range tracked {
		if tf.LastEmbeddedAt != nil {
			status.EmbeddedFiles++
		}
		if tf.Degraded {
			status.DegradedFiles++
		}
	}
	return status, nil
}

// writeGuardError maps idempotency and domain errors to HTTP statuses.
func (h *Handler) writeGuardError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, apperr.ErrKeyReuse):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("idempotency key reused with a different payload"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error(what+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// decodeBody reads and decodes a JSON request body, returning the raw
// bytes for idempotency fingerprinting.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) ([]byte, T, bool) {
	var req T
	raw, err := readAll(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, req, false
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, req, false
	}
	return raw, req, true
}
