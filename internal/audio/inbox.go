package audio

import (
	"fmt"
	"path/filepath"

	"github.com/starford/worklog/internal/apperr"
	"github.com/starford/worklog/internal/storage"
)

// Inbox is the directory recordings are dropped into.
type Inbox struct {
	files     *storage.FS
	validator *Validator
}

// NewInbox returns an Inbox over files that lists what v supports.
func NewInbox(files *storage.FS, v *Validator) *Inbox {
	return &Inbox{files: files, validator: v}
}

// Recordings returns the names of supported recordings directly inside the
// inbox, sorted by name.
func (in *Inbox) Recordings() ([]string, error) {
	entries, err := in.files.Entries("")
	if err != nil {
		return nil, fmt.Errorf("audio: list inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir && in.validator.Supported(e.Name) {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// Path returns the absolute path of a recording.
func (in *Inbox) Path(name string) string {
	return filepath.Join(in.files.Root(), filepath.Base(name))
}

// Save stores an uploaded recording under name.
func (in *Inbox) Save(name string, data []byte) error {
	if !in.validator.Supported(name) {
		return apperr.Wrap(apperr.ErrValidation, "unsupported format: "+filepath.Ext(name), nil)
	}
	return in.files.Write(filepath.Base(name), data)
}

// Exists reports whether a recording named name is in the inbox.
func (in *Inbox) Exists(name string) (bool, error) {
	return in.files.Exists(filepath.Base(name))
}

// Remove deletes a recording from the inbox.
func (in *Inbox) Remove(name string) error {
	ok, err := in.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Wrap(apperr.ErrNotFound, "recording "+filepath.Base(name), nil)
	}
	return in.files.Delete(filepath.Base(name))
}
