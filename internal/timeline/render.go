package timeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/worklog/internal/models"
)

// Headings of a weekly summary file.
const (
	HeadingWeekSummary     = "## 📊 Week Summary"
	HeadingAccomplishments = "## 🎯 Key Accomplishments"
	HeadingInsights        = "## 💭 Insights & Thoughts"
	HeadingProgress        = "## 🚧 Progress Indicators"
	HeadingNextFocus       = "## 📝 Next Week Focus"
	HeadingCompletedTasks  = "## ✅ Completed Tasks"
	HeadingDailyRefs       = "## 📄 Daily Notes References"
)

// DailyRef is one daily note contributing to a week.
type DailyRef struct {
	Date string `json:"date"`
	File string `json:"file"`
}

// Weekly is everything rendered into one weekly file.
type Weekly struct {
	Project   string
	Week      models.Week
	Fields    models.WeeklyFields
	Completed []models.TodoItem
	Notes     []DailyRef
}

// RenderWeekly renders a weekly summary file. The completed tasks section is
// omitted when Completed is empty.
func RenderWeekly(w Weekly) string {
	id := w.Week.ID()
	dateRange := w.Week.DateRange()

	links := make([]string, 0, len(w.Notes))
	for _, n := range w.Notes {
		links = append(links, fmt.Sprintf("- [%s: Daily Log](%s)", n.Date, n.File))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "---\ntags: [timeline, weekly-summary, project/%s]\nweek: %s\ndate_range: %s\n---\n\n", w.Project, id, dateRange)
	fmt.Fprintf(&b, "# Week %s: %s - %s\n\n", id, dateRange, w.Project)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingWeekSummary, w.Fields.WeekSummary)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingAccomplishments, w.Fields.Accomplishments)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingInsights, w.Fields.Insights)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingProgress, w.Fields.Blockers)
	fmt.Fprintf(&b, "%s\n%s\n\n", HeadingNextFocus, w.Fields.NextFocus)
	fmt.Fprintf(&b, "%s\n\n", completedSection(w.Completed))
	fmt.Fprintf(&b, "%s\n%s\n", HeadingDailyRefs, strings.Join(links, "\n"))
	return b.String()
}

func completedSection(items []models.TodoItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(HeadingCompletedTasks + "\n")
	for _, it := range items {
		b.WriteString("- " + it.Priority.Emoji() + it.Task)
		if it.Context != "" {
			b.WriteString(" _" + it.Context + "_")
		}
		b.WriteString(" *[[" + it.Source + "|Source]]* \n")
	}
	b.WriteString("\n")
	return b.String()
}

// ExtractSummary returns the week summary of a rendered weekly file with its
// whitespace collapsed to single spaces. The summary runs to the next line
// starting with "## ".
func ExtractSummary(content string) string {
	i := strings.Index(content, HeadingWeekSummary)
	if i < 0 {
		return ""
	}
	rest := content[i+len(HeadingWeekSummary):]
	if end := strings.Index(rest, "\n## "); end >= 0 {
		rest = rest[:end]
	}
	return strings.Join(strings.Fields(rest), " ")
}

// IndexEntry is one weekly file listed in the timeline index.
type IndexEntry struct {
	Week    models.Week `json:"week"`
	Summary string      `json:"summary"`
}

// RenderIndex renders the timeline index. Entries are sorted newest first;
// the first RecentWeeks get a summary line and the rest are grouped by year.
func RenderIndex(project string, entries []IndexEntry) string {
	sorted := append([]IndexEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[j].Week.Before(sorted[i].Week) })

	var b strings.Builder
	fmt.Fprintf(&b, "---\ntags: [timeline, timeline-index, project/%s]\n---\n\n", project)
	fmt.Fprintf(&b, "# %s Timeline\n\n## Recent Weeks\n", project)
	for i, e := range sorted {
		if i == RecentWeeks {
			break
		}
		id := e.Week.ID()
		fmt.Fprintf(&b, "- [%s: %s](%s.md) - %s\n", id, e.Week.DateRange(), id, e.Summary)
	}
	if len(sorted) <= RecentWeeks {
		return b.String()
	}

	b.WriteString("\n## All Weeks\n")
	year := 0
	for _, e := range sorted {
		if e.Week.Year != year {
			year = e.Week.Year
			fmt.Fprintf(&b, "\n### %d\n", year)
		}
		fmt.Fprintf(&b, "- [Week %02d: %s](%s.md)\n", e.Week.Num, e.Week.DateRange(), e.Week.ID())
	}
	return b.String()
}
