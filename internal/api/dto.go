package api

import (
	"time"

	"github.com/starford/laguz/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path  string `json:"path" example:"projects/hello.md" validate:"required"`
	Title string `json:"title" example:"Hello" validate:"required"`
	Body  string `json:"body" example:"World"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title string `json:"title" example:"Hello" validate:"required"`
	Body  string `json:"body" example:"Updated body"`
}

// NoteDetail is a note plus its raw file content.
type NoteDetail struct {
	models.Note
	Content string `json:"content"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps semantic search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// CreateReminderRequest is the request body for creating a reminder.
type CreateReminderRequest struct {
	NoteID  string    `json:"note_id,omitempty" example:"01HYXV..."`
	Message string    `json:"message" example:"review the draft" validate:"required"`
	DueAt   time.Time `json:"due_at" validate:"required"`
}

// ReminderListResponse wraps reminder listings.
type ReminderListResponse struct {
	Reminders []models.Reminder `json:"reminders" validate:"required"`
	Total     int               `json:"total" validate:"required"`
}

// SyncStatusResponse reports the sync engine's current shape.
type SyncStatusResponse struct {
	WatcherReady  bool   `json:"watcher_ready"`
	WatcherError  string `json:"watcher_error,omitempty"`
	PendingChecks int    `json:"pending_checks"`
	TrackedFiles  int    `json:"tracked_files"`
	EmbeddedFiles int    `json:"embedded_files"`
	DegradedFiles int    `json:"degraded_files"`
	ModelVersion  string `json:"model_version"`
}
