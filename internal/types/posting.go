package types

import "time"

// Posting is a rendered and cleaned job posting.
type Posting struct {
	URL       string    `json:"url"`
	RawText   string    `json:"raw_text,omitempty"`
	Text      string    `json:"text"`
	Platform  string    `json:"platform"`
	FromCache bool      `json:"from_cache"`
	FetchedAt time.Time `json:"fetched_at"`
}
