// Package api exposes the scraper control and recipe read endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/scraper"
	"github.com/aluiziolira/go-scrape-recipes/store"
)

// Trigger starts a background scrape run.
type Trigger interface {
	Trigger() error
	Next() time.Time
}

// RunState reports what the scraper is doing right now.
type RunState interface {
	State() scraper.State
	Running() bool
}

// StatusReader reads the status document of the last finished run.
type StatusReader interface {
	ReadStatus() (*models.RunStatus, error)
}

// RecipeReader serves stored recipes.
type RecipeReader interface {
	ListingsBySection(ctx context.Context, section string) ([]models.ListingRecord, error)
	DetailByRecipeID(ctx context.Context, recipeID string) (*models.DetailRecord, error)
}

// Handler serves the HTTP endpoints. Recipes may be nil when no database is
// configured.
type Handler struct {
	trigger  Trigger
	state    RunState
	status   StatusReader
	recipes  RecipeReader
	sections []string
}

// NewHandler creates a new handler.
func NewHandler(trigger Trigger, state RunState, status StatusReader, recipes RecipeReader, sections []string) *Handler {
	return &Handler{
		trigger:  trigger,
		state:    state,
		status:   status,
		recipes:  recipes,
		sections: sections,
	}
}

type statusResponse struct {
	*models.RunStatus
	State   scraper.State `json:"state"`
	Running bool          `json:"running"`
	NextRun *time.Time    `json:"nextRun,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Scrape handles GET /scraper/scrape.
func (h *Handler) Scrape(c *gin.Context) {
	err := h.trigger.Trigger()
	switch {
	case errors.Is(err, scraper.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"message": "Scrape already in progress"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error starting scraper", "error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"message": "Scraping started successfully"})
	}
}

// Status handles GET /scraper/status.
func (h *Handler) Status(c *gin.Context) {
	resp := statusResponse{
		State:   h.state.State(),
		Running: h.state.Running(),
	}
	if next := h.trigger.Next(); !next.IsZero() {
		resp.NextRun = &next
	}

	status, err := h.status.ReadStatus()
	if err != nil {
		slog.Debug("status document unavailable", slog.Any("error", err))
		resp.Message = "Status file not found or invalid"
	} else {
		resp.RunStatus = status
	}

	c.JSON(http.StatusOK, resp)
}

// SectionRecipes handles GET /sections/:section/recipes.
func (h *Handler) SectionRecipes(c *gin.Context) {
	if h.recipes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recipe store not configured"})
		return
	}

	section := c.Param("section")
	if !slices.Contains(h.sections, section) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown section"})
		return
	}

	records, err := h.recipes.ListingsBySection(c.Request.Context(), section)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recipes"})
		return
	}

	c.JSON(http.StatusOK, records)
}

// Recipe handles GET /recipes/:id.
func (h *Handler) Recipe(c *gin.Context) {
	if h.recipes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recipe store not configured"})
		return
	}

	record, err := h.recipes.DetailByRecipeID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recipe"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "state": h.state.State()})
}
