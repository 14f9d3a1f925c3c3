package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Listing is the copy the analyzer proposes for a draft.
type Listing struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Brand       string `json:"brand,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

// Analyzer writes listing copy from a garment photo.
type Analyzer interface {
	AnalyzeGarment(ctx context.Context, imageURL string) (*Listing, error)
}

// ParseListing extracts a Listing from model output. Models wrap JSON in
// markdown fences or lead-in prose often enough that a strict
// json.Unmarshal on the raw text is the exception, not the rule.
func ParseListing(text string) (*Listing, error) {
	raw := strings.TrimSpace(text)

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	// Fall back to the outermost object in the text.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in analyzer output")
		}
		raw = raw[start : end+1]
	}

	var l Listing
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return nil, fmt.Errorf("decode analyzer output: %w", err)
	}
	if l.Title == "" && l.Description == "" {
		return nil, fmt.Errorf("analyzer output carried no usable copy")
	}
	return &l, nil
}
