// Package pipeline collects, deduplicates and persists scraped recipe records.
package pipeline

import (
	"context"
	"sync"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

// Persistence targets reported in PersistenceError.
const (
	TargetFile  = "file"
	TargetStore = "store"
)

// RecordStore is the database side of the sink.
type RecordStore interface {
	ReplaceListings(ctx context.Context, records []models.ListingRecord) error
	ReplaceDetails(ctx context.Context, records []models.DetailRecord) error
}

// Sink is what a scrape run writes its output through.
type Sink interface {
	Clear() error
	WriteRaw(sections []models.RawSection) error
	WriteListings(ctx context.Context, records []models.ListingRecord) error
	WriteDetails(ctx context.Context, records []models.DetailRecord) error
	WriteStatus(status *models.RunStatus) error
}

// DualWriter outputs to the JSON files and, when configured, the database.
type DualWriter struct {
	files *JSONFileWriter
	store RecordStore
	mu    sync.Mutex
}

// NewDualWriter creates a writer over files and an optional store. A nil
// store disables database output.
func NewDualWriter(files *JSONFileWriter, store RecordStore) *DualWriter {
	return &DualWriter{
		files: files,
		store: store,
	}
}

// Clear empties the listings and details files before a run.
func (dw *DualWriter) Clear() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.files.Clear(); err != nil {
		return &PersistenceError{Phase: "clear", Target: TargetFile, Err: err}
	}
	return nil
}

// WriteRaw writes the raw extraction dump. It is file-only.
func (dw *DualWriter) WriteRaw(sections []models.RawSection) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.files.WriteRaw(sections); err != nil {
		return &PersistenceError{Phase: "raw", Target: TargetFile, Err: err}
	}
	return nil
}

// WriteListings replaces the listings in the file and then in the store.
func (dw *DualWriter) WriteListings(ctx context.Context, records []models.ListingRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.files.WriteListings(records); err != nil {
		return &PersistenceError{Phase: "listings", Target: TargetFile, Err: err}
	}
	if dw.store == nil {
		return nil
	}
	if err := dw.store.ReplaceListings(ctx, records); err != nil {
		return &PersistenceError{Phase: "listings", Target: TargetStore, Err: err}
	}
	return nil
}

// WriteDetails replaces the details in the file and then in the store.
func (dw *DualWriter) WriteDetails(ctx context.Context, records []models.DetailRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.files.WriteDetails(records); err != nil {
		return &PersistenceError{Phase: "details", Target: TargetFile, Err: err}
	}
	if dw.store == nil {
		return nil
	}
	if err := dw.store.ReplaceDetails(ctx, records); err != nil {
		return &PersistenceError{Phase: "details", Target: TargetStore, Err: err}
	}
	return nil
}

// WriteStatus writes the run status document.
func (dw *DualWriter) WriteStatus(status *models.RunStatus) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.files.WriteStatus(status); err != nil {
		return &PersistenceError{Phase: "status", Target: TargetFile, Err: err}
	}
	return nil
}

// Validate validates the output files.
func (dw *DualWriter) Validate() error {
	return dw.files.Validate()
}
