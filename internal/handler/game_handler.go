package handler

import (
	"net/http"
	"time"

	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/auth"
	"playmatch/lobby/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

type GameResponse struct {
	Name        string `json:"name" example:"tictactoe"`
	Publisher   string `json:"publisher" example:"alice"`
	Description string `json:"description"`
	Size        int64  `json:"size"`
	// Mine is set when the caller published the game.
	Mine bool `json:"mine,omitempty"`
}

func newGameResponse(game artifact.Game) GameResponse {
	return GameResponse{
		Name:        game.Name,
		Publisher:   game.Publisher,
		Description: game.Description,
		Size:        game.Size,
	}
}

// PaginatedGameResponse defines the structure for a paginated list of games.
type PaginatedGameResponse struct {
	Data []GameResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// PublishResponse is one entry of the publish history.
type PublishResponse struct {
	Name        string    `json:"name"`
	Publisher   string    `json:"publisher"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	PublishedAt time.Time `json:"published_at"`
}

// PaginatedPublishResponse defines the structure for a paginated publish history.
type PaginatedPublishResponse struct {
	Data []PublishResponse `json:"data"`
	Meta PaginationMeta    `json:"meta"`
}

// endregion

// GetGames godoc
// @Summary      Get a list of games
// @Description  Retrieves a paginated list of published games, sorted by name. A valid
// @Description  bearer token marks the caller's own games.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number" default(1)
// @Param        limit   query     int     false  "Items per page" default(10)
// @Success      200 {object} PaginatedGameResponse
// @Router       /games [get]
func (h *Handler) GetGames(c *gin.Context) {
	page, limit := pageParams(c)
	username := c.GetString(auth.ContextUsername)

	games := h.artifacts.List()
	response := make([]GameResponse, 0, len(games))
	for _, game := range games {
		resp := newGameResponse(game)
		resp.Mine = username != "" && game.Publisher == username
		response = append(response, resp)
	}

	c.JSON(http.StatusOK, PaginateSlice(response, page, limit))
}

// GetGameByName godoc
// @Summary      Get a single game by name
// @Description  Retrieves the publishing details of one game.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        name path string true "Game name"
// @Success      200 {object} GameResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{name} [get]
func (h *Handler) GetGameByName(c *gin.Context) {
	game, ok := h.artifacts.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	c.JSON(http.StatusOK, newGameResponse(game))
}

// GetPublishHistory godoc
// @Summary      Get the publish history
// @Description  Every completed upload, newest first, including replaced versions.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number" default(1)
// @Param        limit   query     int     false  "Items per page" default(10)
// @Success      200 {object} PaginatedPublishResponse
// @Failure      401 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse "No database configured"
// @Router       /games/history [get]
func (h *Handler) GetPublishHistory(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Publish history needs a database"})
		return
	}
	page, limit := pageParams(c)

	result, err := Paginate[models.ArtifactRecord](h.db.WithContext(c.Request.Context()), "id desc", page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	response := make([]PublishResponse, 0, len(result.Data))
	for _, rec := range result.Data {
		response = append(response, PublishResponse{
			Name:        rec.Name,
			Publisher:   rec.Publisher,
			Description: rec.Description,
			Size:        rec.Size,
			PublishedAt: rec.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(response, result.Meta.TotalItems, page, limit))
}
