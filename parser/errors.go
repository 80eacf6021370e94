package parser

import (
	"errors"
	"fmt"
)

// Extraction stages reported by ExtractionError.
const (
	StageMarker   = "marker"
	StageObject   = "object"
	StageDecode   = "decode"
	StageResponse = "response"
	StageLDJSON   = "ld+json"
)

var (
	// ErrMarkerNotFound means no script block contained the response marker.
	ErrMarkerNotFound = errors.New("no script contains the response marker")
	// ErrNoJSONObject means the marker script held no balanced JSON object.
	ErrNoJSONObject = errors.New("no balanced JSON object containing the marker")
	// ErrMissingResponse means the embedded object had no response field.
	ErrMissingResponse = errors.New("response field is missing")
	// ErrNoStructuredData means the page had no JSON-LD script block.
	ErrNoStructuredData = errors.New("no JSON-LD script block")
	// ErrNoRecipe means the JSON-LD block held no named recipe node.
	ErrNoRecipe = errors.New("no recipe node in JSON-LD")
)

// ExtractionError reports that expected embedded data was absent or malformed.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErr(stage string, err error) error {
	return &ExtractionError{Stage: stage, Err: err}
}
