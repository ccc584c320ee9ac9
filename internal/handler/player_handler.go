package handler

import (
	"net/http"
	"sort"

	"playmatch/lobby/internal/auth"

	"github.com/gin-gonic/gin"
)

// PlayerResponse is one online player.
type PlayerResponse struct {
	Username string `json:"username" example:"alice"`
	Status   string `json:"status" example:"idle"`
}

// MeResponse describes the authenticated user.
type MeResponse struct {
	Username string `json:"username" example:"alice"`
	Online   bool   `json:"online"`
	Status   string `json:"status,omitempty" example:"in_room"`
}

// GetPlayers godoc
// @Summary      List online players
// @Description  Returns every user currently logged in to the lobby with their status.
// @Tags         players
// @Produce      json
// @Success      200  {array}  PlayerResponse
// @Router       /players [get]
func (h *Handler) GetPlayers(c *gin.Context) {
	snapshot := h.presence.Snapshot()

	players := make([]PlayerResponse, 0, len(snapshot))
	for name, status := range snapshot {
		players = append(players, PlayerResponse{Username: name, Status: string(status)})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Username < players[j].Username })

	c.JSON(http.StatusOK, players)
}

// GetMe godoc
// @Summary      Get current user
// @Description  Returns the presence of the user the bearer token was issued to.
// @Tags         players
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MeResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	username := c.GetString(auth.ContextUsername)

	status, online := h.presence.Status(username)
	c.JSON(http.StatusOK, MeResponse{Username: username, Online: online, Status: string(status)})
}
