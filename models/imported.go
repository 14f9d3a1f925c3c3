package models

// ImportedListing is the normalized result of pulling a listing from
// another marketplace
type ImportedListing struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	Brand       string   `json:"brand,omitempty"`
	Size        string   `json:"size,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Category    string   `json:"category,omitempty"`
	Images      []string `json:"images"` // remote URLs, rehosted to S3 on draft creation
	SourceURL   string   `json:"source_url"`
	Site        string   `json:"site"`
}
