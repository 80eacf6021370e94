package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/aluiziolira/go-scrape-recipes/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const (
	listingsTable = "recipes"
	detailsTable  = "recipe_content"

	// insertBatchSize keeps bulk inserts under the PostgreSQL parameter limit.
	insertBatchSize = 500
)

const insertListingQuery = `
	INSERT INTO recipes (recipe_id, title, thumbnail, section, steps, submitted_by, record_url)
	VALUES (:recipe_id, :title, :thumbnail, :section, :steps, :submitted_by, :record_url)`

const insertDetailQuery = `
	INSERT INTO recipe_content (recipe_id, title, description, url, thumbnail, author,
		cook_time, prep_time, total_time, recipe_category, keywords, aggregate_rating,
		review_count, nutrition, ingredients, instructions, recipe_yield)
	VALUES (:recipe_id, :title, :description, :url, :thumbnail, :author,
		:cook_time, :prep_time, :total_time, :recipe_category, :keywords, :aggregate_rating,
		:review_count, :nutrition, :ingredients, :instructions, :recipe_yield)`

const selectListingColumns = `recipe_id, title, thumbnail, section, steps, submitted_by, record_url`

const selectDetailColumns = `recipe_id, title, description, url, thumbnail, author,
	cook_time, prep_time, total_time, recipe_category, keywords, aggregate_rating,
	review_count, nutrition, ingredients, instructions, recipe_yield`

// Repository stores listing and detail records. Writes replace the whole
// table contents.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type listingRow struct {
	RecipeID    string `db:"recipe_id"`
	Title       string `db:"title"`
	Thumbnail   string `db:"thumbnail"`
	Section     string `db:"section"`
	Steps       string `db:"steps"`
	SubmittedBy string `db:"submitted_by"`
	RecordURL   string `db:"record_url"`
}

type detailRow struct {
	RecipeID        string         `db:"recipe_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	URL             string         `db:"url"`
	Thumbnail       string         `db:"thumbnail"`
	Author          string         `db:"author"`
	CookTime        string         `db:"cook_time"`
	PrepTime        string         `db:"prep_time"`
	TotalTime       string         `db:"total_time"`
	RecipeCategory  string         `db:"recipe_category"`
	Keywords        string         `db:"keywords"`
	AggregateRating string         `db:"aggregate_rating"`
	ReviewCount     string         `db:"review_count"`
	Nutrition       types.JSONText `db:"nutrition"`
	Ingredients     types.JSONText `db:"ingredients"`
	Instructions    types.JSONText `db:"instructions"`
	RecipeYield     string         `db:"recipe_yield"`
}

// ReplaceListings clears the listings table and inserts records. Records
// without a recipe id are skipped. The clear is not undone when the insert
// fails.
func (r *Repository) ReplaceListings(ctx context.Context, records []models.ListingRecord) error {
	if err := r.clear(ctx, listingsTable); err != nil {
		return err
	}

	rows := make([]listingRow, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.RecipeID) == "" {
			continue
		}
		rows = append(rows, listingRow{
			RecipeID:    record.RecipeID,
			Title:       record.Title,
			Thumbnail:   record.ThumbnailURL,
			Section:     record.Section,
			Steps:       record.StepCount,
			SubmittedBy: record.SubmittedBy,
			RecordURL:   record.DetailURL,
		})
	}
	if skipped := len(records) - len(rows); skipped > 0 {
		slog.Warn("skipping listings without recipe id",
			slog.String("table", listingsTable),
			slog.Int("count", skipped),
		)
	}

	return insertRows(ctx, r.db, listingsTable, insertListingQuery, rows)
}

// ReplaceDetails clears the details table and inserts records.
func (r *Repository) ReplaceDetails(ctx context.Context, records []models.DetailRecord) error {
	if err := r.clear(ctx, detailsTable); err != nil {
		return err
	}

	rows := make([]detailRow, 0, len(records))
	for _, record := range records {
		row, err := toDetailRow(record)
		if err != nil {
			return fmt.Errorf("encode detail %q: %w", record.RecipeID, err)
		}
		rows = append(rows, row)
	}

	return insertRows(ctx, r.db, detailsTable, insertDetailQuery, rows)
}

// ListingsBySection returns the stored listings of one section in insertion
// order.
func (r *Repository) ListingsBySection(ctx context.Context, section string) ([]models.ListingRecord, error) {
	query := `SELECT ` + selectListingColumns + ` FROM recipes WHERE section = $1 ORDER BY id`

	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, query, section); err != nil {
		return nil, fmt.Errorf("select listings for section %q: %w", section, err)
	}

	records := make([]models.ListingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.ListingRecord{
			RecipeID:     row.RecipeID,
			Title:        row.Title,
			ThumbnailURL: row.Thumbnail,
			Section:      row.Section,
			StepCount:    row.Steps,
			SubmittedBy:  row.SubmittedBy,
			DetailURL:    row.RecordURL,
		})
	}
	return records, nil
}

// DetailByRecipeID returns the stored detail for a recipe id, or ErrNotFound.
func (r *Repository) DetailByRecipeID(ctx context.Context, recipeID string) (*models.DetailRecord, error) {
	query := `SELECT ` + selectDetailColumns + ` FROM recipe_content WHERE recipe_id = $1 ORDER BY id LIMIT 1`

	var row detailRow
	if err := r.db.GetContext(ctx, &row, query, recipeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select detail %q: %w", recipeID, err)
	}

	record, err := fromDetailRow(row)
	if err != nil {
		return nil, fmt.Errorf("decode detail %q: %w", recipeID, err)
	}
	return record, nil
}

func (r *Repository) clear(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

func insertRows[T any](ctx context.Context, db *sqlx.DB, table, query string, rows []T) error {
	if len(rows) == 0 {
		slog.Info("nothing to insert", slog.String("table", table))
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s insert: %w", table, err)
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s insert: %w", table, err)
	}

	slog.Info("rows inserted",
		slog.String("table", table),
		slog.Int("count", len(rows)),
	)
	return nil
}

func toDetailRow(record models.DetailRecord) (detailRow, error) {
	nutrition := record.Nutrition
	if nutrition == nil {
		nutrition = map[string]string{}
	}
	ingredients := record.Ingredients
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	instructions := record.Instructions
	if instructions == nil {
		instructions = []json.RawMessage{}
	}

	nutritionJSON, err := json.Marshal(nutrition)
	if err != nil {
		return detailRow{}, fmt.Errorf("nutrition: %w", err)
	}
	ingredientsJSON, err := json.Marshal(ingredients)
	if err != nil {
		return detailRow{}, fmt.Errorf("ingredients: %w", err)
	}
	instructionsJSON, err := json.Marshal(instructions)
	if err != nil {
		return detailRow{}, fmt.Errorf("instructions: %w", err)
	}

	return detailRow{
		RecipeID:        record.RecipeID,
		Title:           record.Title,
		Description:     record.Description,
		URL:             record.SourceURL,
		Thumbnail:       record.ThumbnailURL,
		Author:          record.Author,
		CookTime:        record.CookTime,
		PrepTime:        record.PrepTime,
		TotalTime:       record.TotalTime,
		RecipeCategory:  record.Category,
		Keywords:        record.Keywords,
		AggregateRating: record.RatingValue,
		ReviewCount:     record.ReviewCount,
		Nutrition:       types.JSONText(nutritionJSON),
		Ingredients:     types.JSONText(ingredientsJSON),
		Instructions:    types.JSONText(instructionsJSON),
		RecipeYield:     record.RecipeYield,
	}, nil
}

func fromDetailRow(row detailRow) (*models.DetailRecord, error) {
	record := &models.DetailRecord{
		RecipeID:     row.RecipeID,
		Title:        row.Title,
		Description:  row.Description,
		SourceURL:    row.URL,
		ThumbnailURL: row.Thumbnail,
		Author:       row.Author,
		CookTime:     row.CookTime,
		PrepTime:     row.PrepTime,
		TotalTime:    row.TotalTime,
		Category:     row.RecipeCategory,
		Keywords:     row.Keywords,
		RatingValue:  row.AggregateRating,
		ReviewCount:  row.ReviewCount,
		RecipeYield:  row.RecipeYield,
		Nutrition:    map[string]string{},
		Ingredients:  []models.Ingredient{},
		Instructions: []json.RawMessage{},
	}

	if err := row.Nutrition.Unmarshal(&record.Nutrition); err != nil {
		return nil, fmt.Errorf("nutrition: %w", err)
	}
	if err := row.Ingredients.Unmarshal(&record.Ingredients); err != nil {
		return nil, fmt.Errorf("ingredients: %w", err)
	}
	if err := row.Instructions.Unmarshal(&record.Instructions); err != nil {
		return nil, fmt.Errorf("instructions: %w", err)
	}
	return record, nil
}
