package handler

import (
	"errors"
	"net/http"
	"slices"
	"sort"
	"time"

	"playmatch/lobby/internal/auth"
	"playmatch/lobby/internal/lobby"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

type RoomResponse struct {
	Name      string    `json:"name" example:"r1"`
	Type      string    `json:"type" example:"public"`
	Creator   string    `json:"creator" example:"alice"`
	Status    string    `json:"status" example:"waiting"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

func newRoomResponse(room lobby.Room) RoomResponse {
	return RoomResponse{
		Name:      room.Name,
		Type:      string(room.Kind),
		Creator:   room.Creator,
		Status:    string(room.Status),
		Members:   room.Members,
		CreatedAt: room.CreatedAt,
	}
}

type ServerResponse struct {
	RoomName string `json:"room_name" example:"r1"`
	IP       string `json:"ip" example:"10.0.0.5"`
	Port     int    `json:"port" example:"40001"`
	GameType string `json:"game_type" example:"tictactoe"`
}

// endregion

// GetRooms godoc
// @Summary      List public rooms
// @Description  Returns every public room. Private rooms are never listed.
// @Tags         rooms
// @Produce      json
// @Success      200  {array}  RoomResponse
// @Router       /rooms [get]
func (h *Handler) GetRooms(c *gin.Context) {
	rooms := h.lobby.PublicRooms()

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, newRoomResponse(room))
	}
	sort.Slice(response, func(i, j int) bool { return response[i].Name < response[j].Name })

	c.JSON(http.StatusOK, response)
}

// GetRoomServer godoc
// @Summary      Get a room's game server
// @Description  Returns where the room creator hosts the game. Only room members may ask.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        name path string true "Room name"
// @Success      200  {object}  ServerResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a member of the room"
// @Failure      404  {object}  ErrorResponse "Room or game server not found"
// @Router       /rooms/{name}/server [get]
func (h *Handler) GetRoomServer(c *gin.Context) {
	username := c.GetString(auth.ContextUsername)
	name := c.Param("name")

	room, ok := h.lobby.Room(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if !slices.Contains(room.Members, username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of the room"})
		return
	}

	gs, err := h.lobby.GetGameServer(name)
	if errors.Is(err, lobby.ErrGameServerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game server not set"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get game server"})
		return
	}

	c.JSON(http.StatusOK, ServerResponse{RoomName: name, IP: gs.Address, Port: gs.Port, GameType: gs.GameType})
}
