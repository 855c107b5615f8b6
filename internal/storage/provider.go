// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/laguz/internal/models"

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every tracked file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Rel converts an absolute path into a vault-relative one, rejecting
	// paths that do not fall under the root.
	Rel(abs string) (string, error)
	// Tracked reports whether path carries the tracked file extension.
	Tracked(path string) bool
}
