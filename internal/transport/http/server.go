package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"roomchat/internal/config"
	"roomchat/internal/filter"
	"roomchat/internal/metrics"
	"roomchat/internal/store"
)

// NewServer builds the HTTP server with all chat and admin routes.
func NewServer(st store.Store, masker *filter.Masker, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(st, masker, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(st store.Store, masker *filter.Masker, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(RequestLogger(logger))
	engine.Use(metrics.Middleware())
	engine.Use(gin.Recovery())

	rooms := NewRoomHandlers(st, logger)
	messages := NewMessageHandlers(st, masker, logger, cfg.AutoCreateOnSend)

	engine.GET("/health", healthHandler)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := engine.Group("/api")
	{
		api.POST("/rooms/join", rooms.Join)
		api.POST("/rooms/ensure", rooms.Ensure)
		api.GET("/rooms/info", rooms.Info)

		api.POST("/messages/send", messages.Send)
		api.GET("/messages/list", messages.List)
	}

	admin := api.Group("/admin", RequireAdmin(cfg.AdminSecretHash, logger))
	{
		admin.GET("/rooms/list", rooms.List)
		admin.POST("/rooms/create", rooms.Create)
		admin.POST("/rooms/name", rooms.Rename)
		admin.POST("/rooms/suspend", rooms.Suspend)
		admin.POST("/rooms/clear", rooms.Clear)
		admin.POST("/rooms/delete", rooms.Delete)
	}

	return engine
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
