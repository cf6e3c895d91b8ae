package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Index   int     `json:"index"`
	Request Request `json:"request"`
	Report  *Report `json:"report,omitempty"`
	Err     error   `json:"-"`

	// Error is Err's message for JSON output.
	Error string `json:"error,omitempty"`
}

// Batch runs requests with at most workers running at once. A failing item
// does not stop the others; items are returned in request order.
func (p *Pipeline) Batch(ctx context.Context, requests []Request, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}
	items := make([]BatchItem, len(requests))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, req := range requests {
		g.Go(func() error {
			report, err := p.Run(ctx, req)
			item := BatchItem{Index: i, Request: req, Report: report, Err: err}
			if err != nil {
				item.Error = err.Error()
			}
			items[i] = item
			return nil
		})
	}
	// Workers record failures on their item and always return nil.
	_ = g.Wait()
	return items
}

// Failed counts items that returned an error.
func Failed(items []BatchItem) int {
	n := 0
	for _, it := range items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
