// Package ingest loads historical support tickets from Jira CSV exports
// into the vector index. Parsing and cleaning are deterministic; the only
// network work is the embedding call made when a batch is written.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/example/triage/internal/index"
	"github.com/example/triage/internal/progress"
)

// Config controls an ingestion run.
type Config struct {
	BatchSize   int      // tickets per index write, default 50
	Concurrency int      // parallel file parses and embedding calls, default 4
	Include     []string // doublestar globs applied when walking directories
	Exclude     []string
}

// Result summarizes one ingestion run.
type Result struct {
	FilesParsed int
	Parsed      int
	Indexed     int
	Replaced    int
	Skipped     int
	Errors      []error
	Duration    time.Duration
}

// Pipeline parses exports and writes their tickets to the index in batches.
type Pipeline struct {
	index    *index.TicketIndex
	cfg      Config
	reporter progress.Reporter
}

// NewPipeline creates a pipeline writing to ix.
func NewPipeline(ix *index.TicketIndex, cfg Config) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &Pipeline{index: ix, cfg: cfg, reporter: progress.Quiet{}}
}

// SetReporter sets the progress sink for subsequent runs.
func (p *Pipeline) SetReporter(r progress.Reporter) {
	if r != nil {
		p.reporter = r
	}
}

// Run ingests every export under the given paths. Directories are walked
// for CSV files honoring the include and exclude globs. Per-file and
// per-ticket failures are collected in the result rather than aborting
// the run; only an unusable path or a cancelled context does that.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()

	tickets, res, err := Load(ctx, paths, p.cfg)
	if err != nil {
		return nil, err
	}

	p.indexTickets(ctx, tickets, res)

	res.Duration = time.Since(start)
	return res, nil
}

// Load collects and parses the exports under paths without touching any
// index. Used by the pipeline and by cost previews.
func Load(ctx context.Context, paths []string, cfg Config) ([]Ticket, *Result, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	files, err := collectFiles(paths, cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no csv exports found under %s", strings.Join(paths, ", "))
	}

	res := &Result{}
	parsed := make([][]Ticket, len(files))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tickets, err := ParseFile(file)
			if err != nil {
				mu.Lock()
				res.Errors = append(res.Errors, err)
				mu.Unlock()
				return nil
			}
			parsed[i] = tickets
			mu.Lock()
			res.FilesParsed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []Ticket
	for _, tickets := range parsed {
		all = append(all, tickets...)
	}
	all = dedupe(all)
	res.Parsed = len(all)
	return all, res, nil
}

// collectFiles expands paths into the list of CSV exports to parse, in a
// stable order.
func collectFiles(paths []string, cfg Config) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(sub), ".csv") {
				return nil
			}
			rel, err := filepath.Rel(path, sub)
			if err != nil {
				return err
			}
			if !matchesInclude(rel, cfg.Include) || matchesExclude(rel, cfg.Exclude) {
				return nil
			}
			files = append(files, sub)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// dedupe collapses repeated issue keys; the last occurrence wins, so
// later exports override earlier ones within a run.
func dedupe(tickets []Ticket) []Ticket {
	seen := make(map[string]int, len(tickets))
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if i, ok := seen[t.IssueKey]; ok {
			out[i] = t
			continue
		}
		seen[t.IssueKey] = len(out)
		out = append(out, t)
	}
	return out
}

func (p *Pipeline) indexTickets(ctx context.Context, tickets []Ticket, res *Result) {
	if len(tickets) == 0 {
		return
	}

	p.reporter.Start(len(tickets))
	defer p.reporter.Finish()

	for start := 0; start < len(tickets); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(tickets) {
			end = len(tickets)
		}
		batch := tickets[start:end]

		records := make([]index.TicketRecord, len(batch))
		ids := make([]string, len(batch))
		for i, t := range batch {
			records[i] = Record(t)
			ids[i] = t.IssueKey
		}

		// A re-ingested issue key replaces its previous ticket.
		existing, err := p.index.Lookup(ctx, ids)
		if err == nil {
			for id := range existing {
				if err := p.index.DeleteTicket(ctx, id); err == nil {
					res.Replaced++
				}
			}
		}

		if err := p.index.AddTickets(ctx, records, p.cfg.Concurrency); err != nil {
			// Retry one at a time so a single rejected ticket does not
			// sink the whole batch.
			for i, rec := range records {
				if err := p.index.AddTickets(ctx, []index.TicketRecord{rec}, 1); err != nil {
					res.Skipped++
					res.Errors = append(res.Errors, fmt.Errorf("indexing %s: %w", batch[i].IssueKey, err))
					continue
				}
				res.Indexed++
			}
		} else {
			res.Indexed += len(batch)
		}

		p.reporter.Update(end, fmt.Sprintf("indexed %d/%d tickets", end, len(tickets)))
	}
}

// matchesInclude reports whether relPath matches any include pattern.
// An empty pattern list includes everything.
func matchesInclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(relPath, patterns)
}

// matchesExclude reports whether relPath matches any exclude pattern.
// An empty pattern list excludes nothing.
func matchesExclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	return matchesAny(relPath, patterns)
}

// matchesAny checks relPath against each glob, both as a path and as a
// bare filename. Uses doublestar for ** support.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)

		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(normalized)); err == nil && matched {
			return true
		}
	}
	return false
}
