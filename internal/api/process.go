package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/worklog/internal/jobs"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/noteservice"
	"github.com/starford/worklog/internal/pipeline"
	"github.com/starford/worklog/internal/timeline"
)

// Processor is the part of the content pipeline the API drives.
type Processor interface {
	ProcessTranscript(ctx context.Context, transcript, date, audioFile string) (pipeline.NoteResult, error)
	ProcessAudio(ctx context.Context, path string) (pipeline.NoteResult, error)
	ProcessInbox(ctx context.Context, progress pipeline.Progress) (pipeline.BatchResult, error)
}

// Aggregator creates missing weekly summaries.
type Aggregator interface {
	Generate(ctx context.Context, project string) ([]timeline.WeekResult, error)
	ProcessAllProjects(ctx context.Context) (map[string]int, error)
}

// JobHandler starts pipeline work as background jobs and reports on them.
type JobHandler struct {
	svc  *noteservice.Service
	proc Processor
	agg  Aggregator
	jobs *jobs.Registry
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(svc *noteservice.Service, proc Processor, agg Aggregator, reg *jobs.Registry) *JobHandler {
	return &JobHandler{svc: svc, proc: proc, agg: agg, jobs: reg}
}

// start runs fn as a job and re-syncs the index when it finishes so that
// its output is searchable even without the vault watcher.
func (h *JobHandler) start(kind string, fn jobs.Func) jobs.Job {
	return h.jobs.Start(kind, func(ctx context.Context, logf func(string, ...any)) (any, error) {
		res, err := fn(ctx, logf)
		if syncErr := h.svc.Sync(ctx); syncErr != nil {
			slog.Warn("api: index sync after job failed", slog.String("error", syncErr.Error()))
		}
		return res, err
	})
}

// SubmitTranscript handles POST /api/transcripts.
//
//	@Summary		Process transcript text into a daily note and todos
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TranscriptRequest	true	"Transcript"
//	@Success		202		{object}	JobResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transcripts [post]
func (h *JobHandler) SubmitTranscript(w http.ResponseWriter, r *http.Request) {
	var req TranscriptRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, "submit transcript", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	if _, err := time.Parse(models.DateLayout, req.Date); req.Date != "" && err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}

	job := h.start(jobs.KindTranscript, func(ctx context.Context, logf func(string, ...any)) (any, error) {
		res, err := h.proc.ProcessTranscript(ctx, req.Text, req.Date, "")
		if err != nil {
			return nil, err
		}
		logf("wrote %s (%s, %s)", res.Note, res.Project, res.Outcome)
		return res, nil
	})
	writeJSON(w, http.StatusAccepted, job)
}

// ProcessInbox handles POST /api/jobs/inbox.
//
//	@Summary		Process every recording in the inbox
//	@Tags			jobs
//	@Produce		json
//	@Success		202	{object}	JobResponse
//	@Security		BearerAuth
//	@Router			/jobs/inbox [post]
func (h *JobHandler) ProcessInbox(w http.ResponseWriter, _ *http.Request) {
	job := h.start(jobs.KindInbox, func(ctx context.Context, logf func(string, ...any)) (any, error) {
		return h.proc.ProcessInbox(ctx, func(file string, err error) {
			if err != nil {
				logf("%s: failed: %v", file, err)
				return
			}
			logf("%s: processed", file)
		})
	})
	writeJSON(w, http.StatusAccepted, job)
}

// GenerateTimeline handles POST /api/jobs/timeline.
//
//	@Summary		Create missing weekly summaries for one or all projects
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TimelineJobRequest	false	"Project selection"
//	@Success		202		{object}	JobResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/timeline [post]
func (h *JobHandler) GenerateTimeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineJobRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, "generate timeline", err)
		return
	}

	job := h.start(jobs.KindTimeline, func(ctx context.Context, logf func(string, ...any)) (any, error) {
		if req.Project == "" {
			counts, err := h.agg.ProcessAllProjects(ctx)
			for p, n := range counts {
				if n > 0 {
					logf("%s: %d week(s) created", p, n)
				}
			}
			return counts, err
		}
		weeks, err := h.agg.Generate(ctx, req.Project)
		for _, wk := range weeks {
			logf("%s: %s (%s)", req.Project, wk.Week.ID(), wk.Outcome)
		}
		return map[string]int{req.Project: len(weeks)}, err
	})
	writeJSON(w, http.StatusAccepted, job)
}

// ListJobs handles GET /api/jobs.
//
//	@Summary		List recent jobs newest first
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	JobListResponse
//	@Security		BearerAuth
//	@Router			/jobs [get]
func (h *JobHandler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: h.jobs.List()})
}

// GetJob handles GET /api/jobs/{id}.
//
//	@Summary		Get a job by id
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{object}	JobResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id} [get]
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
