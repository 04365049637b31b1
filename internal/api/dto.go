package api

import (
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/jobs"
	"github.com/starford/worklog/internal/noteservice"
	"github.com/starford/worklog/internal/timeline"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []index.NoteRow `json:"notes" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// ProjectListResponse wraps the project listing.
type ProjectListResponse struct {
	Projects []noteservice.ProjectSummary `json:"projects" validate:"required"`
}

// TimelineResponse lists a project's weekly summaries newest first.
type TimelineResponse struct {
	Project string                `json:"project" example:"Saliency" validate:"required"`
	Weeks   []timeline.IndexEntry `json:"weeks" validate:"required"`
}

// TranscriptRequest submits transcript text for processing.
type TranscriptRequest struct {
	Text string `json:"text" example:"Today I worked on Saliency..." validate:"required"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date,omitempty" example:"2024-01-02"`
}

// TimelineJobRequest selects the project to aggregate; empty means all.
type TimelineJobRequest struct {
	Project string `json:"project,omitempty" example:"Saliency"`
}

// JobResponse is a job snapshot.
type JobResponse = jobs.Job

// JobListResponse wraps the job listing.
type JobListResponse struct {
	Jobs []jobs.Job `json:"jobs" validate:"required"`
}

// AudioUploadResponse is returned after a recording is stored in the inbox.
type AudioUploadResponse struct {
	Filename string    `json:"filename" example:"Daily_Log_02-01-2024.m4a" validate:"required"`
	Size     int64     `json:"size" example:"12345" validate:"required"`
	Job      *jobs.Job `json:"job,omitempty"`
}

// InboxResponse lists the recordings waiting in the inbox.
type InboxResponse struct {
	Recordings []string `json:"recordings" validate:"required"`
}
