package index

import "sort"

// Evidence is one retrieved neighbor backing a triage decision.
type Evidence struct {
	TicketID   string  `json:"ticket_id"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// EvidenceSet is the ranked evidence for one query: sorted by descending
// similarity, ranks strictly increasing from 1.
type EvidenceSet []Evidence

// NewEvidenceSet orders items by descending similarity and assigns ranks.
func NewEvidenceSet(items []Evidence) EvidenceSet {
	set := make(EvidenceSet, len(items))
	copy(set, items)
	sort.SliceStable(set, func(i, j int) bool {
		return set[i].Similarity > set[j].Similarity
	})
	for i := range set {
		set[i].Rank = i + 1
	}
	return set
}

// Top returns the highest-ranked item, if any.
func (s EvidenceSet) Top() (Evidence, bool) {
	if len(s) == 0 {
		return Evidence{}, false
	}
	return s[0], true
}

// TicketIDs returns the ticket ids in rank order.
func (s EvidenceSet) TicketIDs() []string {
	ids := make([]string, len(s))
	for i, ev := range s {
		ids[i] = ev.TicketID
	}
	return ids
}
