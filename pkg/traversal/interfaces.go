package traversal

import (
	"context"

	"pricecrawl/pkg/record"
)

// PageDriver is the browser-side collaborator of the engine. Every call may
// block for as long as the underlying page takes.
type PageDriver interface {
	// Enumerate lists the items offered at level on the current page.
	Enumerate(ctx context.Context, level string) ([]string, error)
	// Select opens item at level, making its children the current page.
	Select(ctx context.Context, level, item string) error
	// ScrapeLeaf returns every record on the current leaf page, following pagination.
	ScrapeLeaf(ctx context.Context) ([]record.Record, error)
}
