package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/observability"
)

var (
	listingsLimit int
	listingsJSON  bool
	scrapeJSON    bool
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Print the newest internship listings",
	RunE:  runListings,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Fetch a job posting and print its cleaned text",
	Args:  cobra.ExactArgs(1),
	RunE:  runScrape,
}

func init() {
	listingsCmd.Flags().IntVarP(&listingsLimit, "limit", "n", 0, "Number of listings (default listings.default_limit)")
	listingsCmd.Flags().BoolVar(&listingsJSON, "json", false, "Print JSON instead of a table")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Print the posting as JSON")

	rootCmd.AddCommand(listingsCmd)
	rootCmd.AddCommand(scrapeCmd)
}

// printJSON writes v indented to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runListings(cmd *cobra.Command, _ []string) error {
	limit := listingsLimit
	if limit <= 0 {
		limit = cfg.Listings.DefaultLimit
	}

	a := newApp(cfg)
	defer a.Close()

	jobs, err := a.Listings().Fetch(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to fetch jobs: %w", err)
	}
	if listingsJSON {
		return printJSON(cmd, jobs)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintListings(jobs)
	return nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	a := newApp(cfg)
	defer a.Close()

	postings, err := a.Postings(cmd.Context())
	if err != nil {
		return err
	}
	posting, err := postings.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if scrapeJSON {
		return printJSON(cmd, posting)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintPosting(posting)
	return nil
}
