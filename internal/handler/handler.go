package handler

import (
	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/lobby"
	"playmatch/lobby/internal/presence"

	"gorm.io/gorm"
)

// Handler serves the read-only status API over the live lobby state.
type Handler struct {
	presence  *presence.Store
	lobby     *lobby.Lobby
	artifacts *artifact.Store
	// db is nil when the lobby runs without a database.
	db *gorm.DB
}

func New(p *presence.Store, l *lobby.Lobby, a *artifact.Store, db *gorm.DB) *Handler {
	return &Handler{presence: p, lobby: l, artifacts: a, db: db}
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}
