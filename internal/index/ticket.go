package index

// TicketRecord is one historical support ticket held in the index.
// Records are immutable once added; re-ingesting an issue replaces the
// whole record.
type TicketRecord struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Resolution map[string]string `json:"resolution,omitempty"`
}

// Resolution metadata keys written by the ingest pipeline.
const (
	ResolutionIssueKey = "issue_key"
	ResolutionStatus   = "status"
	ResolutionPriority = "priority"
)
