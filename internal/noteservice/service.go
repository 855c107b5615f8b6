// Package noteservice implements the note entity layer: vault files with
// front-matter identifiers, backed by the notes table and kept consistent
// through the embedding pipeline.
package noteservice

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/vector"
)

// Enqueuer is the slice of the pipeline the service needs for API-driven
// writes, which bypass the watcher.
type Enqueuer interface {
	EnqueueEntity(noteID, relPath string)
}

// Events receives note lifecycle notifications. kind is one of "created",
// "updated", or "deleted". May be nil.
type Events func(kind, path, noteID string)

// Service coordinates vault storage and the notes table.
type Service struct {
	store    storage.Provider
	db       *ledger.DB
	vectors  vector.Store
	pipeline Enqueuer
	events   Events
	owner    string
}

// NewService creates a note service for one owner.
func NewService(store storage.Provider, db *ledger.DB, vectors vector.Store, pipeline Enqueuer, events Events, owner string) *Service {
	return &Service{store: store, db: db, vectors: vectors, pipeline: pipeline, events: events, owner: owner}
}

func (s *Service) emit(kind, path, noteID string) {
	if s.events != nil {
		s.events(kind, path, noteID)
	}
}

// CreateParams are the inputs for creating a note.
type CreateParams struct {
	Path  string
	Title string
	Body  string
}

// CreateTx writes the note file and its binding. It runs inside the
// caller's transaction so the idempotency guard can commit the binding and
// the key record atomically. The file itself is written first; if the
// transaction then rolls back, the orphaned file is adopted by the next
// dirty check, which is harmless.
func (s *Service) CreateTx(ctx context.Context, tx *sql.Tx, p CreateParams) (*models.Note, error) {
	if !s.store.Tracked(p.Path) {
		return nil, apperr.ErrConflict
	}
	if _, err := s.store.Read(p.Path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if _, err := s.db.GetNoteByPath(ctx, s.owner, p.Path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	now := time.Now()
	note := models.Note{
		ID:           ulid.Make().String(),
		OwnerID:      s.owner,
		RelativePath: p.Path,
		Title:        p.Title,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Write(p.Path, parser.Compose(note.ID, p.Title, p.Body)); err != nil {
		return nil, err
	}
	if err := s.db.InsertNoteTx(tx, note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Update rewrites a note's file, preserving its identifier, and enqueues
// re-embedding directly since the caller already knows the entity changed.
func (s *Service) Update(ctx context.Context, noteID, title, body string) (*models.Note, error) {
	note, err := s.db.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(note.RelativePath, parser.Compose(note.ID, title, body)); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.db.UpdateNoteTitle(ctx, noteID, title, now); err != nil {
		return nil, err
	}
	note.Title = title
	note.UpdatedAt = now
	s.pipeline.EnqueueEntity(note.ID, note.RelativePath)
	s.emit("updated", note.RelativePath, note.ID)
	return note, nil
}

// Created announces a freshly created note and queues it for embedding.
// Callers that create notes inside a transaction use this after the
// commit, once the binding is durable.
func (s *Service) Created(note *models.Note) {
	s.pipeline.EnqueueEntity(note.ID, note.RelativePath)
	s.emit("created", note.RelativePath, note.ID)
}

// Get returns a note and its current file content.
func (s *Service) Get(ctx context.Context, noteID string) (*models.Note, string, error) {
	note, err := s.db.GetNote(ctx, noteID)
	if err != nil {
		return nil, "", err
	}
	data, err := s.store.Read(note.RelativePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", apperr.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return note, string(data), nil
}

// List returns all of the owner's notes.
func (s *Service) List(ctx context.Context) ([]models.Note, error) {
	return s.db.ListNotes(ctx, s.owner)
}

// Delete removes the file, the note binding, the sync ledger row, and the
// vector. The file goes first so the watcher has nothing left to chase;
// the ledger row goes inside the same transaction as the binding because
// entity deletion is the one path allowed to remove tracked files.
func (s *Service) Delete(ctx context.Context, noteID string) error {
	note, err := s.db.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(note.RelativePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.db.DeleteNoteTx(tx, noteID); err != nil {
			return err
		}
		return s.db.DeleteTrackedTx(tx, s.owner, note.RelativePath)
	})
	if err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, noteID); err != nil {
		return err
	}
	s.emit("deleted", note.RelativePath, noteID)
	return nil
}

// CanonicalText resolves a note id to its embeddable text by re-reading
// the file, so the pipeline always embeds what is on disk right now and
// records the hash of exactly those bytes.
func (s *Service) CanonicalText(ctx context.Context, noteID string) (*models.CanonicalText, error) {
	note, err := s.db.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(note.RelativePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	title := res.Title
	if title == "" {
		title = note.Title
	}
	return &models.CanonicalText{
		NoteID: noteID,
		Path:   note.RelativePath,
		Title:  title,
		Body:   res.Body,
		Hash:   checksum.Sum(data),
	}, nil
}
