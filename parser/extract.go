package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

// ResponseMarker is the literal that identifies the listing data script.
const ResponseMarker = `"response"`

const ldJSONType = "application/ld+json"

// ExtractListingResponse finds the embedded listing envelope in a section
// page and decodes its results. The first script containing ResponseMarker
// is authoritative. A missing results array yields zero results.
func ExtractListingResponse(html string) (*models.ListingResponse, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, extractionErr(StageMarker, fmt.Errorf("parse html: %w", err))
	}

	script := ""
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, ResponseMarker) {
			script = text
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, extractionErr(StageMarker, ErrMarkerNotFound)
	}

	object, ok := findJSONObject(script, ResponseMarker)
	if !ok {
		return nil, extractionErr(StageObject, ErrNoJSONObject)
	}

	var envelope struct {
		Response *struct {
			Results json.RawMessage `json:"results"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(object), &envelope); err != nil {
		return nil, extractionErr(StageDecode, err)
	}
	if envelope.Response == nil {
		return nil, extractionErr(StageResponse, ErrMissingResponse)
	}

	raw := bytes.TrimSpace(envelope.Response.Results)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &models.ListingResponse{Results: []models.ListingItem{}, Raw: json.RawMessage("[]")}, nil
	}

	var items []models.ListingItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, extractionErr(StageDecode, fmt.Errorf("decode results: %w", err))
	}
	if items == nil {
		items = []models.ListingItem{}
	}
	return &models.ListingResponse{Results: items, Raw: json.RawMessage(raw)}, nil
}

// findJSONObject returns the first balanced, valid JSON object in s whose
// text contains marker. Candidates are tried in order of their opening brace;
// braces inside string literals are ignored.
func findJSONObject(s, marker string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		end := matchBrace(s, start)
		if end < 0 {
			start = nextBrace(s, start+1)
			continue
		}
		candidate := s[start : end+1]
		if !strings.Contains(candidate, marker) {
			start = nextBrace(s, end+1)
			continue
		}
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
		start = nextBrace(s, start+1)
	}
	return "", false
}

func nextBrace(s string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], '{')
	if i < 0 {
		return -1
	}
	return from + i
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractRecipeDocument decodes the first JSON-LD script block of a detail
// page into a recipe document. Top-level arrays and @graph containers are
// searched for the first Recipe node.
func ExtractRecipeDocument(html string) (*models.RecipeDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, extractionErr(StageLDJSON, fmt.Errorf("parse html: %w", err))
	}

	raw := ""
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), ldJSONType) {
			raw = s.Text()
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, extractionErr(StageLDJSON, ErrNoStructuredData)
	}

	node, err := recipeNode([]byte(strings.TrimSpace(raw)))
	if err != nil {
		return nil, extractionErr(StageLDJSON, err)
	}

	var recipe models.RecipeDocument
	if err := json.Unmarshal(node, &recipe); err != nil {
		return nil, extractionErr(StageLDJSON, fmt.Errorf("decode recipe: %w", err))
	}
	if recipe.Name == "" {
		return nil, extractionErr(StageLDJSON, ErrNoRecipe)
	}
	return &recipe, nil
}

func recipeNode(data []byte) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, ErrNoRecipe
	}
	if data[0] == '[' {
		var nodes []json.RawMessage
		if err := json.Unmarshal(data, &nodes); err != nil {
			return nil, fmt.Errorf("decode json-ld: %w", err)
		}
		return firstRecipe(nodes)
	}

	var container struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("decode json-ld: %w", err)
	}
	if len(container.Graph) > 0 {
		return firstRecipe(container.Graph)
	}
	return data, nil
}

func firstRecipe(nodes []json.RawMessage) (json.RawMessage, error) {
	for _, node := range nodes {
		var head struct {
			Type models.TextList `json:"@type"`
		}
		if err := json.Unmarshal(node, &head); err != nil {
			continue
		}
		for _, t := range head.Type {
			if t == "Recipe" {
				return node, nil
			}
		}
	}
	return nil, ErrNoRecipe
}
