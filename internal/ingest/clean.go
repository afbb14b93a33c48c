package ingest

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	jiraMarkupRe = regexp.MustCompile(`\{(?:quote|noformat|panel[^}]*|code[^}]*|color[^}]*)\}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// mojibakeReplacer maps the UTF-8-as-Latin-1 sequences common in older
// Jira exports back to plain punctuation.
var mojibakeReplacer = strings.NewReplacer(
	"â€™", "'",
	"â€œ", `"`,
	"â€", `"`,
	"Â", "",
)

// CleanText strips HTML tags and Jira wiki markup from a field and
// collapses runs of whitespace.
func CleanText(text string) string {
	text = htmlTagRe.ReplaceAllString(text, "")
	text = jiraMarkupRe.ReplaceAllString(text, "")
	text = mojibakeReplacer.Replace(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// CleanComment cleans one comment cell. Jira exports comments as
// "date;author-id;body"; the author id is dropped and the date kept as
// context for the body. Cells in any other shape are cleaned as plain text.
func CleanComment(text string) string {
	parts := strings.SplitN(text, ";", 3)
	if len(parts) == 3 {
		body := CleanText(parts[2])
		if body == "" {
			return ""
		}
		return "[" + strings.TrimSpace(parts[0]) + "] " + body
	}
	return CleanText(text)
}
