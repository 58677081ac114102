package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragdesk/internal/bootstrap"
	"ragdesk/internal/transport/http/handler"
	"ragdesk/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), middleware.Recovery())
	// multipart parts above this size spill to temp files
	router.MaxMultipartMemory = 32 << 20

	svc := app.Services
	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(svc.Auth)
	promptHandler := handler.NewSystemPromptHandler(svc.Prompts)
	collectionHandler := handler.NewCollectionHandler(svc.Ingest, svc.Collections, app.Config.RAG.MaxUploadMB)
	queryHandler := handler.NewQueryHandler(svc.Query)
	chatHandler := handler.NewChatHandler(svc.Chat)
	maintenanceHandler := handler.NewMaintenanceHandler(svc.Settings)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secret := app.Config.Auth.JWTSecret
	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(secret), authHandler.Me)

	v1.GET("/maintenance", maintenanceHandler.Status)

	api := v1.Group("")
	api.Use(middleware.AuthJWT(secret), middleware.Maintenance(svc.Settings))

	prompts := api.Group("/system-prompts")
	prompts.GET("", promptHandler.List)
	prompts.POST("", promptHandler.Create)
	prompts.GET("/:id", promptHandler.Get)
	prompts.PUT("/:id", promptHandler.Update)
	prompts.DELETE("/:id", promptHandler.Delete)

	collections := api.Group("/collections")
	collections.GET("", collectionHandler.List)
	collections.POST("", collectionHandler.Create)
	collections.GET("/:name", collectionHandler.Get)
	collections.POST("/:name/documents", collectionHandler.AddDocuments)
	collections.DELETE("/:name", collectionHandler.Delete)

	api.POST("/query", queryHandler.Ask)
	api.GET("/conversations", queryHandler.ListConversations)
	api.DELETE("/conversations", queryHandler.ClearConversations)

	chatGroup := api.Group("/chat")
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.POST("/users", authHandler.CreateUser)
	admin.POST("/maintenance/toggle", maintenanceHandler.Toggle)
	admin.PUT("/maintenance", maintenanceHandler.Set)

	return router
}
