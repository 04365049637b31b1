// Package notes owns the on-disk Markdown format of daily notes and
// transcripts. The heading constants are shared by the renderer and the
// section reader; changing one changes the format.
package notes

import (
	"fmt"
	"strings"

	"github.com/starford/worklog/internal/models"
)

// Daily note section headings.
const (
	HeadingSummary    = "## 📋 Summary"
	HeadingCompleted  = "## ✅ Completed Today"
	HeadingBlockers   = "## 🚧 In Progress / Blockers"
	HeadingNextSteps  = "## 📝 Next Steps"
	HeadingThoughts   = "## 💭 Thoughts & Ideas"
	HeadingTranscript = "## 📝 Full Transcript"
)

const timestampLayout = "2006-01-02 15:04:05"

// RenderDailyNote renders a daily note document.
func RenderDailyNote(n models.DailyNote) string {
	f := n.Fields
	var b strings.Builder
	fmt.Fprintf(&b, "---\ndate: %s\nproject: %s\ntags: [daily, work-log, project/%s]\n---\n\n", n.Date, f.Project, f.Project)
	fmt.Fprintf(&b, "# Daily Log: %s\n\n", n.Date)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingSummary, f.Summary)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingCompleted, f.Completed)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingBlockers, f.Blockers)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingNextSteps, f.NextSteps)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingThoughts, f.Thoughts)
	fmt.Fprintf(&b, "%s\n", n.TranscriptLink)
	fmt.Fprintf(&b, "---\n*Generated from audio transcript on %s*\n", n.GeneratedAt.Format(timestampLayout))
	return b.String()
}

// TranscriptLink renders the link section pointing at a saved transcript.
func TranscriptLink(relPath string) string {
	return fmt.Sprintf("%s\n[View complete transcript](%s)\n", HeadingTranscript, relPath)
}

// RenderTranscript renders a transcript file.
func RenderTranscript(date, project, text string) string {
	return fmt.Sprintf("---\ndate: %s\nproject: %s\ntags: [transcript, project/%s]\n---\n\n# Transcript: %s - %s\n\n%s",
		date, project, project, date, project, text)
}

// RenderTodoExtract renders the transcript saved by todo-only processing.
func RenderTodoExtract(date, project, text string) string {
	return fmt.Sprintf("---\ndate: %s\nproject: %s\ntags: [transcript, todo-extract, project/%s]\n---\n\n# Todo Extract: %s - %s\n\n%s",
		date, project, project, date, project, text)
}

// Sections is the content read back from a daily note.
type Sections struct {
	Date      string
	Summary   string
	Completed string
	Blockers  string
	NextSteps string
	Thoughts  string
}

// ParseSections extracts the body of each section. A section runs from its
// heading to the next line starting with "## " or the end of the document;
// Thoughts also stops at the generated-on footer.
func ParseSections(date, content string) Sections {
	return Sections{
		Date:      date,
		Summary:   section(content, HeadingSummary, headingStop),
		Completed: section(content, HeadingCompleted, headingStop),
		Blockers:  section(content, HeadingBlockers, headingStop),
		NextSteps: section(content, HeadingNextSteps, headingStop),
		Thoughts:  section(content, HeadingThoughts, headingStop, footerStop),
	}
}

const (
	headingStop = "\n## "
	footerStop  = "\n---\n*Generated from audio transcript"
)

func section(content, heading string, stops ...string) string {
	i := strings.Index(content, heading)
	if i < 0 {
		return ""
	}
	rest := content[i+len(heading):]
	if rest == "" || !strings.ContainsRune(" \t\r\n", rune(rest[0])) {
		// Heading must be followed by whitespace.
		return ""
	}
	end := len(rest)
	for _, stop := range stops {
		if j := strings.Index(rest, stop); j >= 0 && j < end {
			end = j
		}
	}
	return strings.TrimSpace(rest[:end])
}
