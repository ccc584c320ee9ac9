package handler

import (
	"net/http"

	"playmatch/lobby/internal/auth"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter wires every status API route. Tokens are the ones the lobby
// issues at login, signed with secret.
func NewRouter(h *Handler, secret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/players", h.GetPlayers)
		apiV1.GET("/rooms", h.GetRooms)
		apiV1.GET("/games", auth.OptionalAuthMiddleware(secret), h.GetGames)

		protected := apiV1.Group("")
		protected.Use(auth.AuthMiddleware(secret))
		{
			protected.GET("/me", h.GetMe)
			protected.GET("/games/history", h.GetPublishHistory)
			protected.GET("/games/:name", h.GetGameByName)
			protected.GET("/rooms/:name/server", h.GetRoomServer)
		}
	}

	return router
}
