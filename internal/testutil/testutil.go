// Package testutil provides shared test helpers for vaults, databases and
// scripted language models.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/llm"
	"github.com/starford/worklog/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFiles writes path→content pairs into store.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// ReadFile returns the content at p or fails the test.
func ReadFile(t *testing.T, store storage.Provider, p string) string {
	t.Helper()
	data, err := store.Read(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(data)
}

// Reply is one scripted completer response.
type Reply struct {
	Text string
	Err  error
}

// Script is an llm.Completer that answers from a queue of replies and
// records every request. When the queue is empty it repeats the last reply.
type Script struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []llm.Request
}

// NewScript returns a Script answering with replies in order.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Complete implements llm.Completer.
func (s *Script) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.replies) == 0 {
		return "", os.ErrDeadlineExceeded
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.Text, r.Err
}

// Calls returns how many requests were made.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
