package index

import (
	"strings"
	"unicode/utf8"
)

// snippetWidth is the number of bytes of context kept around a LIKE match.
const snippetWidth = 160

// searchTerms splits a user query into the words every hit must contain.
func searchTerms(query string) []string {
	return strings.Fields(query)
}

// ftsQuery quotes every term so week ids, dates and hyphenated names are
// matched literally instead of parsed as FTS5 operators. The last term
// matches as a prefix.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	if n := len(quoted); n > 0 {
		quoted[n-1] += "*"
	}
	return strings.Join(quoted, " ")
}

// likePattern escapes LIKE wildcards in term for use with ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// snippetAround returns the part of body around the first occurrence of
// any term, case-insensitively, trimmed to whole runes.
func snippetAround(body string, terms []string) string {
	lower := strings.ToLower(body)
	at := -1
	for _, t := range terms {
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		at = 0
	}

	start := max(at-snippetWidth/4, 0)
	end := min(start+snippetWidth, len(body))
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}

	out := strings.Join(strings.Fields(body[start:end]), " ")
	if start > 0 {
		out = "..." + out
	}
	if end < len(body) {
		out += "..."
	}
	return out
}
