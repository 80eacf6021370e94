package parser

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

// NormalizeListing maps a raw listing item to a ListingRecord, filling the
// site defaults for missing fields.
func NormalizeListing(section string, item models.ListingItem) models.ListingRecord {
	return models.ListingRecord{
		RecipeID:     strings.TrimSpace(item.RecipeID.String()),
		Title:        orDefault(item.MainTitle.String(), models.DefaultTitle),
		ThumbnailURL: item.PhotoURL.String(),
		Section:      section,
		StepCount:    orDefault(item.NumSteps.String(), models.DefaultStepCount),
		SubmittedBy:  orDefault(item.UserName.String(), models.DefaultSubmittedBy),
		DetailURL:    strings.TrimSpace(item.RecordURL.String()),
	}
}

// NormalizeDetail maps a recipe document to a DetailRecord. It is a pure
// function of its inputs.
func NormalizeDetail(doc *models.RecipeDocument, detailURL, thumbnail string) models.DetailRecord {
	record := models.DetailRecord{
		RecipeID:     RecipeIDFromURL(detailURL),
		SourceURL:    detailURL,
		ThumbnailURL: thumbnail,
		Nutrition:    map[string]string{},
		Ingredients:  []models.Ingredient{},
		Instructions: []json.RawMessage{},
	}
	if doc == nil {
		return record
	}

	record.Title = doc.Name.String()
	record.Description = doc.Description.String()
	record.Author = doc.Author.String()
	record.CookTime = doc.CookTime.String()
	record.PrepTime = doc.PrepTime.String()
	record.TotalTime = doc.TotalTime.String()
	record.Category = doc.RecipeCategory.String()
	record.Keywords = doc.Keywords.String()
	record.RecipeYield = doc.RecipeYield.String()
	if doc.AggregateRating != nil {
		record.RatingValue = doc.AggregateRating.RatingValue.String()
		record.ReviewCount = doc.AggregateRating.ReviewCount.String()
	}

	for name, value := range doc.Nutrition {
		if strings.HasPrefix(name, "@") {
			continue
		}
		record.Nutrition[name] = value.String()
	}

	for _, line := range doc.RecipeIngredient {
		record.Ingredients = append(record.Ingredients, ParseIngredient(line.String()))
	}

	for _, step := range doc.RecipeInstructions {
		record.Instructions = append(record.Instructions, append(json.RawMessage(nil), step...))
	}

	return record
}

// RecipeIDFromURL derives a recipe id from the trailing path segment of a
// detail URL, keeping only the text after its last '-'.
func RecipeIDFromURL(detailURL string) string {
	path := strings.TrimSpace(detailURL)
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	segment := path[strings.LastIndex(path, "/")+1:]
	if i := strings.LastIndex(segment, "-"); i >= 0 {
		segment = segment[i+1:]
	}
	return segment
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
