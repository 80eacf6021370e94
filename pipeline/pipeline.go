package pipeline

import (
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/parser"
)

const listingKeySeparator = "_"

// ListingCollector accumulates the listing records of one run. Records are
// deduplicated by (section, title) across every section added so far, and
// the detail URL of each kept record is remembered in first-seen order.
type ListingCollector struct {
	mu      sync.Mutex
	seen    *DedupeSet
	urlSeen *DedupeSet
	records []models.ListingRecord
	urls    []string
}

// NewListingCollector builds an empty collector for a single run. size is
// the initial capacity of its dedupe sets.
func NewListingCollector(size int) (*ListingCollector, error) {
	seen, err := NewDedupeSet(size)
	if err != nil {
		return nil, err
	}
	urlSeen, err := NewDedupeSet(size)
	if err != nil {
		return nil, err
	}
	return &ListingCollector{
		seen:    seen,
		urlSeen: urlSeen,
	}, nil
}

// AddSection normalizes and collects the raw items of one section. It
// returns the number of records kept.
func (c *ListingCollector) AddSection(section string, items []models.ListingItem) int {
	kept := 0
	for _, item := range items {
		if c.Add(parser.NormalizeListing(section, item)) {
			kept++
		}
	}
	return kept
}

// Add collects a normalized record unless its (section, title) pair was
// already seen in this run.
func (c *ListingCollector) Add(record models.ListingRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seen.Add(record.Section + listingKeySeparator + record.Title) {
		slog.Debug("skipping duplicate listing",
			slog.String("section", record.Section),
			slog.String("title", record.Title),
		)
		return false
	}

	c.records = append(c.records, record)

	if record.DetailURL == "" {
		slog.Debug("listing has no detail url",
			slog.String("section", record.Section),
			slog.String("title", record.Title),
		)
		return true
	}
	if c.urlSeen.Add(record.DetailURL) {
		c.urls = append(c.urls, record.DetailURL)
	}
	return true
}

// Records returns the kept records in insertion order.
func (c *ListingCollector) Records() []models.ListingRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ListingRecord, len(c.records))
	copy(out, c.records)
	return out
}

// DetailURLs returns the unique detail URLs in first-seen order.
func (c *ListingCollector) DetailURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}

// DetailCollector accumulates the detail records of one run, keeping the
// first record seen for each title. It is safe for concurrent use.
type DetailCollector struct {
	mu      sync.Mutex
	seen    *DedupeSet
	records []models.DetailRecord
}

// NewDetailCollector builds an empty collector for a single run.
func NewDetailCollector(size int) (*DetailCollector, error) {
	seen, err := NewDedupeSet(size)
	if err != nil {
		return nil, err
	}
	return &DetailCollector{seen: seen}, nil
}

// Add collects record unless a record with the same title was already added.
func (c *DetailCollector) Add(record models.DetailRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seen.Add(record.Title) {
		slog.Info("recipe already collected, skipping",
			slog.String("title", record.Title),
			slog.String("url", record.SourceURL),
		)
		return false
	}
	c.records = append(c.records, record)
	return true
}

// Records returns the kept records in insertion order.
func (c *DetailCollector) Records() []models.DetailRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.DetailRecord, len(c.records))
	copy(out, c.records)
	return out
}

// ThumbnailIndex maps recipe ids to the first non-empty thumbnail among the
// given listings. Listings are keyed by the id derived from their detail
// URL, the same id a detail record carries; the listing's own recipe_id is
// used only when it has no detail URL.
func ThumbnailIndex(listings []models.ListingRecord) map[string]string {
	index := make(map[string]string, len(listings))
	for _, listing := range listings {
		id := listing.RecipeID
		if listing.DetailURL != "" {
			id = parser.RecipeIDFromURL(listing.DetailURL)
		}
		if id == "" || listing.ThumbnailURL == "" {
			continue
		}
		if _, ok := index[id]; !ok {
			index[id] = listing.ThumbnailURL
		}
	}
	return index
}
