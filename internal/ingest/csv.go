package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Ticket is one support ticket parsed from an export, cleaned and ready
// to be rendered into an index document.
type Ticket struct {
	IssueKey    string
	Summary     string
	Description string
	Status      string
	Priority    string
	Comments    string
}

// columnMap resolves the header layout of a Jira export. Jira writes one
// Comment column per comment, so those are a slice.
type columnMap struct {
	issueKey    int
	summary     int
	description int
	status      int
	priority    int
	merged      int
	comments    []int
}

// commentContentRes match cell values that look like Jira comment payloads.
// Used when an export carries no Comment-labelled columns.
var commentContentRes = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}\s\d{1,2}:\d{2}`),
	regexp.MustCompile(`[0-9a-f]{20,}`),
	regexp.MustCompile(`Message originally posted`),
	regexp.MustCompile(`Hi\s+\w+`),
}

// ParseFile reads a Jira CSV export from disk.
func ParseFile(path string) ([]Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	tickets, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return tickets, nil
}

// Parse reads a Jira CSV export. The first row is the header; field names
// are matched case-insensitively and missing columns yield empty fields.
func Parse(r io.Reader) ([]Ticket, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("export has no data rows")
	}

	cols := mapColumns(rows[0], rows[1:])

	tickets := make([]Ticket, 0, len(rows)-1)
	for i, row := range rows[1:] {
		tickets = append(tickets, buildTicket(cols, row, i))
	}
	return tickets, nil
}

func mapColumns(header []string, rows [][]string) columnMap {
	cols := columnMap{issueKey: -1, summary: -1, description: -1, status: -1, priority: -1, merged: -1}

	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case strings.EqualFold(name, "Issue key"):
			cols.issueKey = i
		case strings.EqualFold(name, "Summary"):
			cols.summary = i
		case strings.EqualFold(name, "Description"):
			cols.description = i
		case strings.EqualFold(name, "Status"):
			cols.status = i
		case strings.EqualFold(name, "Priority"):
			cols.priority = i
		case strings.EqualFold(name, "Merged Comments"):
			cols.merged = i
		case strings.HasPrefix(name, "Comment"):
			cols.comments = append(cols.comments, i)
		}
	}

	// Some exports are stripped of their Comment labels but still carry
	// the payloads; sniff the remaining columns by content.
	if cols.merged < 0 && len(cols.comments) == 0 {
		cols.comments = sniffCommentColumns(header, rows, cols)
	}
	return cols
}

// metadataNameFragments disqualify a column from comment sniffing based on
// its header name alone.
var metadataNameFragments = []string{"key", "id", "status", "priority", "created", "resolved"}

func sniffCommentColumns(header []string, rows [][]string, cols columnMap) []int {
	known := map[int]bool{
		cols.issueKey:    true,
		cols.summary:     true,
		cols.description: true,
		cols.status:      true,
		cols.priority:    true,
	}

	var detected []int
	for i, name := range header {
		if known[i] || nameSuggestsMetadata(name) {
			continue
		}
		if columnLooksLikeComments(rows, i) {
			detected = append(detected, i)
		}
	}
	return detected
}

func nameSuggestsMetadata(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range metadataNameFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// columnLooksLikeComments samples up to five non-empty values from the
// column and reports whether any resembles a comment payload.
func columnLooksLikeComments(rows [][]string, col int) bool {
	sampled := 0
	for _, row := range rows {
		if sampled >= 5 {
			break
		}
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		sampled++

		if strings.Contains(v, ";") {
			return true
		}
		for _, re := range commentContentRes {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func buildTicket(cols columnMap, row []string, idx int) Ticket {
	t := Ticket{
		IssueKey:    CleanText(cell(row, cols.issueKey)),
		Summary:     CleanText(cell(row, cols.summary)),
		Description: CleanText(cell(row, cols.description)),
		Status:      CleanText(cell(row, cols.status)),
		Priority:    CleanText(cell(row, cols.priority)),
		Comments:    mergeComments(cols, row),
	}
	if t.IssueKey == "" {
		t.IssueKey = fmt.Sprintf("ticket_%d", idx)
	}
	return t
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// mergeComments joins the comment columns of one row in export order. A
// pre-merged "Merged Comments" column wins when present.
func mergeComments(cols columnMap, row []string) string {
	if cols.merged >= 0 {
		return strings.TrimSpace(cell(row, cols.merged))
	}

	var parts []string
	for _, i := range cols.comments {
		if c := CleanComment(cell(row, i)); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}
