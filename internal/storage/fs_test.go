package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))
	_ = s.Write(".worklog/locks/x.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum != Checksum([]byte("a")) && it.Checksum != Checksum([]byte("b")) {
			t.Errorf("unexpected checksum for %s", it.Path)
		}
	}
}

func TestEntries(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("2024-01-02_Saliency.md", []byte("b"))
	_ = s.Write("2024-01-01_Saliency.md", []byte("a"))
	_ = s.Write("transcripts/t.md", []byte("t"))

	entries, err := s.Entries("")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Name != "2024-01-01_Saliency.md" || entries[0].IsDir {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[2].Name != "transcripts" || !entries[2].IsDir {
		t.Errorf("entries[2] = %+v", entries[2])
	}

	missing, err := s.Entries("nope")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir: entries=%v err=%v", missing, err)
	}
}

func TestExists(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("here.md", []byte("x"))
	if ok, err := s.Exists("here.md"); err != nil || !ok {
		t.Errorf("Exists(here.md) = %v, %v", ok, err)
	}
	if ok, err := s.Exists("gone.md"); err != nil || ok {
		t.Errorf("Exists(gone.md) = %v, %v", ok, err)
	}
}

func TestSub(t *testing.T) {
	s := tempVault(t)
	sub, err := s.Sub("Daily Notes")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if err := sub.Write("n.md", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Read("Daily Notes/n.md"); err != nil {
		t.Errorf("parent cannot see sub write: %v", err)
	}
	if _, err := s.Sub("../escape"); err == nil {
		t.Error("expected error for escaping sub dir")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("atomic.md", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, tempPattern))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/worklog-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "worklog-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
