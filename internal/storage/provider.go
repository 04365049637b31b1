// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/worklog/internal/models"

// Entry is an immediate child of a directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Provider is the interface for vault file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns metadata for every .md file under dir, recursively.
	List(dir string) ([]models.NoteMetadata, error)
	// Entries returns the immediate children of dir sorted by name.
	Entries(dir string) ([]Entry, error)
	// Exists reports whether path is present.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute directory the provider is rooted at.
	Root() string
}
