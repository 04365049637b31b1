// Package models defines the domain types shared by the worklog pipeline.
package models

import "time"

// DateLayout is the layout of every date embedded in note names and frontmatter.
const DateLayout = "2006-01-02"

// UnknownProject is used when no configured project matches a transcript.
const UnknownProject = "Unknown"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteFields is the fixed-schema record extracted from a transcript.
type NoteFields struct {
	Project   string `json:"project"`
	Summary   string `json:"summary"`
	Completed string `json:"completed"`
	Blockers  string `json:"blockers"`
	NextSteps string `json:"next_steps"`
	Thoughts  string `json:"thoughts"`
}

// DailyNote is one day's structured work log for one project.
type DailyNote struct {
	Date           string
	Fields         NoteFields
	AudioFile      string
	GeneratedAt    time.Time
	TranscriptLink string
}

// Transcript is the output of a transcription backend.
type Transcript struct {
	Text     string   `json:"text"`
	Language string   `json:"language,omitempty"`
	Segments []string `json:"segments,omitempty"`
}

// Outcome tags how a language-model result was obtained.
type Outcome string

const (
	// OutcomeOK means the response parsed and carried every required key.
	OutcomeOK Outcome = "ok"
	// OutcomeFallback means some or all fields were recovered by pattern matching
	// or filled with placeholders.
	OutcomeFallback Outcome = "fallback"
	// OutcomeError means the call failed and a fixed error record was produced.
	OutcomeError Outcome = "error"
)
