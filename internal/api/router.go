package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/jobs"
	"github.com/starford/worklog/internal/noteservice"
)

// Deps are the collaborators behind the API routes.
type Deps struct {
	Service    *noteservice.Service
	Processor  Processor
	Aggregator Aggregator
	Jobs       *jobs.Registry
	Inbox      *audio.Inbox
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(deps Deps, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(deps.Service)
	jh := NewJobHandler(deps.Service, deps.Processor, deps.Aggregator, deps.Jobs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Read side.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/search", h.Search)
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/{project}/todos", h.GetTodos)
	r.Get("/projects/{project}/timeline", h.GetTimeline)

	// Pipeline jobs.
	r.Post("/transcripts", jh.SubmitTranscript)
	r.Post("/jobs/inbox", jh.ProcessInbox)
	r.Post("/jobs/timeline", jh.GenerateTimeline)
	r.Get("/jobs", jh.ListJobs)
	r.Get("/jobs/{id}", jh.GetJob)

	if deps.Inbox != nil {
		ah := NewAudioHandler(deps.Inbox, jh)
		r.Get("/audio", ah.List)
		r.Post("/audio", ah.Upload)
		r.Delete("/audio/{name}", ah.Delete)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
