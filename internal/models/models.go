// Package models defines the domain types shared across the sync engine.
package models

import "time"

// TrackedFile is one row of the sync ledger: the last-known embedding state
// of a vault path for a given owner.
type TrackedFile struct {
	OwnerID               string     `json:"owner_id"`
	RelativePath          string     `json:"relative_path"`
	ContentHash           string     `json:"content_hash"`
	LastModifiedAt        time.Time  `json:"last_modified_at"`
	LastEmbeddedAt        *time.Time `json:"last_embedded_at,omitempty"`
	EmbeddingModelVersion string     `json:"embedding_model_version,omitempty"`
	VectorRef             string     `json:"vector_ref,omitempty"`
	// Degraded marks an entity whose embedding could not be refreshed after
	// the retry budget was exhausted. It stays searchable by non-semantic
	// means and is cleared on the next successful embedding.
	Degraded bool `json:"degraded"`
}

// IdempotencyRecord caches the outcome of a mutating request keyed by
// (owner, endpoint, idempotency key).
type IdempotencyRecord struct {
	OwnerID            string    `json:"owner_id"`
	Endpoint           string    `json:"endpoint"`
	Key                string    `json:"idempotency_key"`
	RequestFingerprint string    `json:"request_fingerprint"`
	ResponseStatus     int       `json:"response_status"`
	ResponseBody       []byte    `json:"response_body"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// Note binds a stable entity identifier to a vault file.
type Note struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	RelativePath string    `json:"relative_path"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reminder is a scheduled prompt, optionally attached to a note.
type Reminder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	NoteID    string    `json:"note_id,omitempty"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// FileMetadata is a lightweight representation returned by vault listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalText is the embeddable representation of an entity, together
// with the hash of the bytes it was derived from.
type CanonicalText struct {
	NoteID string
	Path   string
	Title  string
	Body   string
	Hash   string
}

// SearchHit is one semantic search result joined with ledger state.
type SearchHit struct {
	NoteID   string  `json:"note_id"`
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded"`
}
