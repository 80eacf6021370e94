// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Listing defaults applied when the source omits a field.
const (
	DefaultTitle       = "No Title"
	DefaultStepCount   = "Steps not available"
	DefaultSubmittedBy = "Food.com"
)

// ListingRecord represents one recipe as it appears in a section listing.
type ListingRecord struct {
	RecipeID     string `json:"recipe_id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail"`
	Section      string `json:"section"`
	StepCount    string `json:"steps"`
	SubmittedBy  string `json:"submittedBy"`
	DetailURL    string `json:"record_url"`
}

// Ingredient is one free-text ingredient line split into quantity and item.
type Ingredient struct {
	Quantity string `json:"quantity"`
	Item     string `json:"item"`
}

// DetailRecord is the expanded page for one recipe.
type DetailRecord struct {
	RecipeID     string            `json:"recipe_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	SourceURL    string            `json:"url"`
	ThumbnailURL string            `json:"thumbnail"`
	Author       string            `json:"author"`
	CookTime     string            `json:"cookTime"`
	PrepTime     string            `json:"prepTime"`
	TotalTime    string            `json:"totalTime"`
	Category     string            `json:"recipeCategory"`
	Keywords     string            `json:"keywords"`
	RatingValue  string            `json:"aggregateRating"`
	ReviewCount  string            `json:"reviewCount"`
	Nutrition    map[string]string `json:"nutrition"`
	Ingredients  []Ingredient      `json:"ingredients"`
	Instructions []json.RawMessage `json:"instructions"`
	RecipeYield  string            `json:"recipeYield"`
}

// ListingItem is a raw entry of a listing page's embedded "results" array.
type ListingItem struct {
	RecipeID  Text `json:"recipe_id"`
	MainTitle Text `json:"main_title"`
	PhotoURL  Text `json:"recipe_photo_url"`
	NumSteps  Text `json:"num_steps"`
	UserName  Text `json:"user_name"`
	RecordURL Text `json:"record_url"`
}

// ListingResponse holds the decoded results of one listing page along with
// the raw array they were decoded from.
type ListingResponse struct {
	Results []ListingItem
	Raw     json.RawMessage
}

// AggregateRating mirrors the schema.org AggregateRating node.
type AggregateRating struct {
	RatingValue Text `json:"ratingValue"`
	ReviewCount Text `json:"reviewCount"`
}

// UnmarshalJSON implements json.Unmarshaler. A value that is not an object
// leaves the rating empty.
func (a *AggregateRating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*a = AggregateRating{}
		return nil
	}
	type plain AggregateRating
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode aggregate rating: %w", err)
	}
	*a = AggregateRating(decoded)
	return nil
}

// RecipeDocument is the subset of a schema.org Recipe JSON-LD node the
// scraper reads. Unknown fields are ignored.
type RecipeDocument struct {
	Type               Text             `json:"@type"`
	Name               Text             `json:"name"`
	Description        Text             `json:"description"`
	Author             Text             `json:"author"`
	CookTime           Text             `json:"cookTime"`
	PrepTime           Text             `json:"prepTime"`
	TotalTime          Text             `json:"totalTime"`
	RecipeCategory     Text             `json:"recipeCategory"`
	Keywords           Text             `json:"keywords"`
	AggregateRating    *AggregateRating `json:"aggregateRating"`
	Nutrition          TextMap          `json:"nutrition"`
	RecipeIngredient   TextList         `json:"recipeIngredient"`
	RecipeInstructions Documents        `json:"recipeInstructions"`
	RecipeYield        Text             `json:"recipeYield"`
}

// RawSection is one section's unmodified results array, kept for the
// intermediate extraction dump.
type RawSection struct {
	Section string          `json:"section"`
	Results json.RawMessage `json:"results"`
}
