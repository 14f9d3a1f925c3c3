package importer

import (
	"context"

	"github.com/threadswap/threadswap/models"
)

// Importer pulls a seller's existing listing off another marketplace and
// normalizes it into draft-ready fields.
type Importer interface {
	// CanImport reports whether this importer handles the given URL.
	CanImport(url string) bool
	// ImportListing fetches and parses the listing page.
	ImportListing(ctx context.Context, url string) (*models.ImportedListing, error)
}
