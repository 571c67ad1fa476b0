package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/auth"
	"github.com/relaychat/relaychat-server/internal/blob"
	"github.com/relaychat/relaychat-server/internal/config"
	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/store"
)

// NewServer builds the HTTP server: REST API, upload serving and the
// WebSocket endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, blobs *blob.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	messageHandlers := NewMessageHandlers(st, blobs, logger)
	roomHandlers := NewRoomHandlers(st, logger)
	userHandlers := NewUserHandlers(st, logger)

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	api := router.Group("/api")
	{
		api.POST("/auth/register", apiHandlers.Register)
		api.POST("/auth/login", apiHandlers.Login)

		api.GET("/messages", messageHandlers.ListMessages)
		api.POST("/messages/upload", messageHandlers.UploadFile)

		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms", AuthMiddleware(authService, logger), roomHandlers.CreateRoom)

		api.GET("/users", userHandlers.ListOnline)
	}

	if blobs != nil {
		router.Static("/uploads", blobs.Dir())
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
