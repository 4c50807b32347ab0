package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvPortal/internal/api/middleware"
	"cvPortal/internal/auth"
	"cvPortal/internal/config"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/database"
	"cvPortal/internal/editor"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	queue TaskEnqueuer,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	storageClient PDFStorage,
	sessions *editor.Registry,
) {
	repo := cvstore.New(db)
	cvHandler := NewCVHandler(repo, storageClient, queue, cfg.API.PublicBaseURL)
	reviewHandler := NewReviewHandler(repo)
	editorHandler := NewEditorHandler(sessions, cfg.ImageHost.MaxBytes)
	authHandler := NewAuthHandler(db, authService, redisClient, cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow)
	wsHandler := NewWsHandler(NewRedisSubscriber(redisClient), authService, logger, cfg.API.Origins())
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)
		v1.GET("/share/:token", cvHandler.GetSharedCV)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
		}

		cvGroup := v1.Group("/cvs")
		cvGroup.Use(authMiddleware)
		{
			cvGroup.GET("", cvHandler.ListCVs)
			cvGroup.POST("", cvHandler.SaveCV)
			cvGroup.GET("/:id", cvHandler.GetCV)
			cvGroup.DELETE("/:id", cvHandler.DeleteCV)
			cvGroup.POST("/:id/share", cvHandler.ShareCV)
			cvGroup.DELETE("/:id/share", cvHandler.UnshareCV)
			cvGroup.POST("/:id/export-pdf", cvHandler.ExportPDF)
			cvGroup.GET("/:id/download-link", cvHandler.GetDownloadLink)
		}

		registerEditorRoutes(v1.Group("/editor/sessions", authMiddleware), editorHandler)

		adminGroup := v1.Group("/admin")
		adminGroup.Use(authMiddleware, middleware.RequireRole(database.RoleLead, database.RoleAdmin))
		{
			adminGroup.GET("/cvs", reviewHandler.ListCVs)
			adminGroup.PATCH("/cvs/:id/status", reviewHandler.SetStatus)
		}
	}
}

func registerEditorRoutes(g *gin.RouterGroup, h *EditorHandler) {
	g.POST("", h.CreateSession)
	g.GET("/:sid", h.GetSession)
	g.DELETE("/:sid", h.DeleteSession)

	g.PUT("/:sid/title", h.SetTitle)
	g.PUT("/:sid/visibility", h.SetVisibility)
	g.POST("/:sid/move", h.MoveBlock)
	g.POST("/:sid/reorder", h.ReorderBlock)

	g.POST("/:sid/drag/start", h.StartDrag)
	g.POST("/:sid/drag/hover", h.HoverDrag)
	g.POST("/:sid/drag/drop", h.DropDrag)
	g.POST("/:sid/drag/cancel", h.CancelDrag)
	g.PUT("/:sid/selection", h.Select)

	g.PATCH("/:sid/blocks/:bid", h.PatchBlockData)
	g.PUT("/:sid/blocks/:bid", h.ReplaceBlockData)
	g.PUT("/:sid/blocks/:bid/fields/:field", h.SetField)
	g.POST("/:sid/blocks/:bid/entries", h.AddEntry)
	g.PATCH("/:sid/blocks/:bid/entries/:eid", h.UpdateEntry)
	g.DELETE("/:sid/blocks/:bid/entries/:eid", h.RemoveEntry)
	g.POST("/:sid/blocks/:bid/avatar", h.UploadAvatar)

	g.POST("/:sid/save", h.Save)

	g.GET("/:sid/preview", h.Preview)
	g.GET("/:sid/panel", h.Panel)
	g.GET("/:sid/overlay", h.DragOverlay)
	g.GET("/:sid/print", h.PrintDocument)
}
