// Package parser extracts frontmatter, source links, and tags from generated
// worklog Markdown files.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\]\(([^)\s]+\.md)\)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Kind classifies a vault file by the tags the pipeline writes.
type Kind string

const (
	KindDaily      Kind = "daily"
	KindWeekly     Kind = "weekly"
	KindTodo       Kind = "todo"
	KindTranscript Kind = "transcript"
	KindIndex      Kind = "index"
	KindDebug      Kind = "debug"
	KindOther      Kind = "other"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
	Kind        Kind
	Project     string
	Date        string
}

// Parse extracts frontmatter, body, links, and tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	tags := extractTags(body, fm)
	res := &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        tags,
		Title:       deriveTitle(fm, body),
	}
	res.Project = deriveProject(fm, tags)
	res.Date = field(fm, "date")
	res.Kind = classify(fm, tags, res.Title)
	return res, nil
}

// Field returns a frontmatter value rendered as a string.
func (r *Result) Field(key string) string {
	return field(r.Frontmatter, key)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole document as body.
		return nil, string(data)
	}

	return fm, body
}

// extractLinks returns deduplicated link targets: wikilink targets with the
// alias removed, then relative .md links.
func extractLinks(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(target string) {
		target = strings.TrimSpace(target)
		if target == "" {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		add(target)
	}
	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		if strings.Contains(m[1], "://") {
			continue
		}
		add(strings.TrimSuffix(m[1], ".md"))
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" field and inline #tags.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s := field(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func deriveProject(fm map[string]interface{}, tags []string) string {
	if p := field(fm, "project"); p != "" {
		return p
	}
	for _, t := range tags {
		if p, ok := strings.CutPrefix(t, "project/"); ok {
			return p
		}
	}
	return ""
}

func classify(fm map[string]interface{}, tags []string, title string) Kind {
	has := make(map[string]bool, len(tags))
	for _, t := range tags {
		has[t] = true
	}
	switch {
	case has["daily"]:
		return KindDaily
	case has["weekly-summary"]:
		return KindWeekly
	case has["timeline-index"]:
		return KindIndex
	case has["todo"]:
		return KindTodo
	case has["transcript"]:
		return KindTranscript
	case fm != nil && field(fm, "model") != "" && field(fm, "type") != "":
		return KindDebug
	case fm == nil && strings.HasSuffix(title, " Timeline"):
		return KindIndex
	default:
		return KindOther
	}
}

func field(fm map[string]interface{}, key string) string {
	if fm == nil {
		return ""
	}
	switch v := fm[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		// yaml.v3 decodes bare dates into time.Time.
		return v.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}
