package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/jobs"
)

const maxUploadBytes = 200 << 20 // 200 MB

// AudioHandler accepts recordings into the inbox.
type AudioHandler struct {
	inbox *audio.Inbox
	jobs  *JobHandler
}

// NewAudioHandler creates an AudioHandler. Uploads marked for processing
// are handed to jh.
func NewAudioHandler(inbox *audio.Inbox, jh *JobHandler) *AudioHandler {
	return &AudioHandler{inbox: inbox, jobs: jh}
}

// safeName accepts plain file names only.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /api/audio (multipart/form-data, field "file").
//
//	@Summary		Upload a recording into the inbox
//	@Tags			audio
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Recording"
//	@Param			process	formData	bool	false	"Process the recording right away"
//	@Success		201		{object}	AudioUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/audio [post]
func (h *AudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	if err := h.inbox.Save(name, data); err != nil {
		writeError(w, "save recording", err)
		return
	}

	resp := AudioUploadResponse{Filename: name, Size: int64(len(data))}
	if r.FormValue("process") == "true" && h.jobs != nil {
		path := h.inbox.Path(name)
		job := h.jobs.start(jobs.KindInbox, func(ctx context.Context, logf func(string, ...any)) (any, error) {
			res, err := h.jobs.proc.ProcessAudio(ctx, path)
			if err != nil {
				return nil, err
			}
			logf("%s: wrote %s", name, res.Note)
			return res, nil
		})
		resp.Job = &job
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/audio.
//
//	@Summary		List recordings waiting in the inbox
//	@Tags			audio
//	@Produce		json
//	@Success		200	{object}	InboxResponse
//	@Security		BearerAuth
//	@Router			/audio [get]
func (h *AudioHandler) List(w http.ResponseWriter, _ *http.Request) {
	names, err := h.inbox.Recordings()
	if err != nil {
		writeError(w, "list inbox", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, InboxResponse{Recordings: names})
}

// Delete handles DELETE /api/audio/{name}.
//
//	@Summary		Remove a recording from the inbox
//	@Tags			audio
//	@Param			name	path	string	true	"Recording file name"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/audio/{name} [delete]
func (h *AudioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.inbox.Remove(name); err != nil {
		writeError(w, "remove recording", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
