package index

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/example/triage/internal/embeddings"
)

const (
	collectionName = "customer_service_tickets"
	indexFileName  = "tickets.gob.gz"

	// metaTicketID mirrors the document id into metadata so tickets can be
	// fetched and deleted through chromem's where filters.
	metaTicketID = "ticket_id"
)

// TicketIndex implements VectorIndex using chromem-go.
type TicketIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
	dims       int
}

var _ VectorIndex = (*TicketIndex)(nil)

// NewTicketIndex creates an in-memory index embedding through the given embedder.
func NewTicketIndex(embedder embeddings.Embedder) (*TicketIndex, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &TicketIndex{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
		dims:       embedder.Dimensions(),
	}, nil
}

// AddTickets stores tickets, embedding those without a precomputed vector.
// concurrency bounds parallel embedding calls; values below 1 mean serial.
func (ix *TicketIndex) AddTickets(ctx context.Context, tickets []TicketRecord, concurrency int) error {
	if len(tickets) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	docs := make([]chromem.Document, len(tickets))
	for i, t := range tickets {
		docs[i] = chromem.Document{
			ID:        t.ID,
			Content:   t.Text,
			Embedding: t.Embedding,
			Metadata:  resolutionToMap(t.ID, t.Resolution),
		}
	}

	if err := ix.collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return fmt.Errorf("add tickets: %w", err)
	}
	return nil
}

// Query returns up to k neighbors of the embedding as a ranked evidence set.
func (ix *TicketIndex) Query(ctx context.Context, embedding []float32, k int) (EvidenceSet, error) {
	if ix.collection == nil {
		return nil, ErrIndexUnavailable
	}
	if len(embedding) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index holds %d", ErrDimensionMismatch, len(embedding), ix.dims)
	}

	count := ix.collection.Count()
	if count == 0 {
		return NewEvidenceSet(nil), nil
	}
	if k > count {
		k = count
	}

	results, err := ix.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	items := make([]Evidence, len(results))
	for i, r := range results {
		items[i] = Evidence{
			TicketID:   r.ID,
			Similarity: float64(r.Similarity),
		}
	}
	return NewEvidenceSet(items), nil
}

// Lookup fetches the stored tickets for the given ids. Unknown ids are
// skipped; callers check for presence.
func (ix *TicketIndex) Lookup(ctx context.Context, ids []string) (map[string]TicketRecord, error) {
	tickets := make(map[string]TicketRecord, len(ids))
	if ix.collection.Count() == 0 {
		return tickets, nil
	}

	for _, id := range ids {
		where := map[string]string{metaTicketID: id}

		// The id doubles as query text; the where filter narrows to one doc.
		results, err := ix.collection.Query(ctx, id, 1, where, nil)
		if err != nil {
			return nil, fmt.Errorf("lookup ticket %s: %w", id, err)
		}
		if len(results) == 0 {
			continue
		}
		r := results[0]
		tickets[id] = TicketRecord{
			ID:         r.ID,
			Text:       r.Content,
			Embedding:  r.Embedding,
			Resolution: mapToResolution(r.Metadata),
		}
	}
	return tickets, nil
}

// DeleteTicket removes a ticket; re-ingestion calls this before adding the
// replacement record.
func (ix *TicketIndex) DeleteTicket(ctx context.Context, id string) error {
	where := map[string]string{metaTicketID: id}
	return ix.collection.Delete(ctx, where, nil)
}

// Persist writes the index to dir.
func (ix *TicketIndex) Persist(ctx context.Context, dir string) error {
	return ix.db.ExportToFile(filepath.Join(dir, indexFileName), true, "")
}

// Load restores the index from dir.
func (ix *TicketIndex) Load(ctx context.Context, dir string) error {
	if err := ix.db.ImportFromFile(filepath.Join(dir, indexFileName), ""); err != nil {
		return fmt.Errorf("import index: %w", err)
	}

	// Re-acquire the collection reference after import.
	col := ix.db.GetCollection(collectionName, ix.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	ix.collection = col
	return nil
}

// Count returns the number of indexed tickets.
func (ix *TicketIndex) Count() int {
	return ix.collection.Count()
}

func resolutionToMap(id string, resolution map[string]string) map[string]string {
	md := make(map[string]string, len(resolution)+1)
	for k, v := range resolution {
		md[k] = v
	}
	md[metaTicketID] = id
	return md
}

func mapToResolution(md map[string]string) map[string]string {
	resolution := make(map[string]string, len(md))
	for k, v := range md {
		if k == metaTicketID {
			continue
		}
		resolution[k] = v
	}
	return resolution
}
