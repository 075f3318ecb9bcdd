// Package types provides type definitions shared across the job-matcher packages.
//
//nolint:revive // types is a standard Go package name pattern
package types

// NoLink is stored in JobListing.Link when a row has no apply anchor.
const NoLink = "No link"

// JobListing is one row of the internship table.
type JobListing struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	Location string `json:"location"`
	Link     string `json:"link"`
}

// HasLink reports whether the listing carries a usable apply URL.
func (l JobListing) HasLink() bool {
	return l.Link != "" && l.Link != NoLink
}

// ListingResult holds either the parsed listings or a single error record.
type ListingResult struct {
	Listings []JobListing `json:"listings,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Failed reports whether the result is the error record.
func (r ListingResult) Failed() bool {
	return r.Error != ""
}
