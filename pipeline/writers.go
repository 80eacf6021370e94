package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

// File names written under the data directory.
const (
	RawFile      = "data.json"
	ListingsFile = "recipes.json"
	DetailsFile  = "detailedRecipes.json"
	StatusFile   = "status.json"
)

// JSONFileWriter writes run output as pretty-printed JSON documents. Every
// write replaces the previous file contents.
type JSONFileWriter struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFileWriter prepares dir for output.
func NewJSONFileWriter(dir string) (*JSONFileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	return &JSONFileWriter{dir: dir}, nil
}

// Path returns the full path of a file in the data directory.
func (jw *JSONFileWriter) Path(name string) string {
	return filepath.Join(jw.dir, name)
}

// Clear resets the listings and details files to empty arrays.
func (jw *JSONFileWriter) Clear() error {
	for _, name := range []string{ListingsFile, DetailsFile} {
		if err := jw.write(name, []struct{}{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// WriteRaw writes the per-section extraction dump.
func (jw *JSONFileWriter) WriteRaw(sections []models.RawSection) error {
	if sections == nil {
		sections = []models.RawSection{}
	}
	return jw.write(RawFile, sections)
}

// WriteListings replaces the listings file.
func (jw *JSONFileWriter) WriteListings(records []models.ListingRecord) error {
	if records == nil {
		records = []models.ListingRecord{}
	}
	return jw.write(ListingsFile, records)
}

// WriteDetails replaces the details file.
func (jw *JSONFileWriter) WriteDetails(records []models.DetailRecord) error {
	if records == nil {
		records = []models.DetailRecord{}
	}
	return jw.write(DetailsFile, records)
}

// WriteStatus replaces the status document.
func (jw *JSONFileWriter) WriteStatus(status *models.RunStatus) error {
	if status == nil {
		return fmt.Errorf("status is nil")
	}
	return jw.write(StatusFile, status)
}

// ReadListings reads back the listings file.
func (jw *JSONFileWriter) ReadListings() ([]models.ListingRecord, error) {
	var records []models.ListingRecord
	if err := jw.read(ListingsFile, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadDetails reads back the details file.
func (jw *JSONFileWriter) ReadDetails() ([]models.DetailRecord, error) {
	var records []models.DetailRecord
	if err := jw.read(DetailsFile, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadStatus reads back the status document. It returns an error wrapping
// os.ErrNotExist when no run has finished yet.
func (jw *JSONFileWriter) ReadStatus() (*models.RunStatus, error) {
	var status models.RunStatus
	if err := jw.read(StatusFile, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Validate ensures the listings and details files hold JSON arrays.
func (jw *JSONFileWriter) Validate() error {
	for _, name := range []string{ListingsFile, DetailsFile} {
		var items []json.RawMessage
		if err := jw.read(name, &items); err != nil {
			return fmt.Errorf("validate %s: %w", name, err)
		}
	}
	return nil
}

func (jw *JSONFileWriter) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	tmp, err := os.CreateTemp(jw.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, jw.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (jw *JSONFileWriter) read(name string, v any) error {
	jw.mu.Lock()
	data, err := os.ReadFile(jw.Path(name))
	jw.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
