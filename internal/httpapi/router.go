package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/soulink/companion-backend/internal/config"
	"github.com/soulink/companion-backend/internal/httpapi/handlers"
	"github.com/soulink/companion-backend/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/ping", h.Ping)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/users", h.CreateUser)
		v1.POST("/login", h.Login)

		// WebSocket auth rides in the token query parameter, handled inside.
		v1.GET("/chat/ws/:companion_id", h.ChatWS)

		authed := v1.Group("")
		authed.Use(middleware.AuthRequired(cfg.JWTSecret))
		{
			authed.GET("/users/me", h.Me)

			authed.POST("/companions", h.CreateCompanion)
			authed.GET("/companions", h.ListCompanions)
			authed.GET("/companions/:companion_id", h.GetCompanion)
			authed.PATCH("/companions/:companion_id", h.UpdateCompanion)
			authed.DELETE("/companions/:companion_id", h.DeleteCompanion)

			authed.POST("/companions/:companion_id/knowledge", h.UploadKnowledgeFile)
			authed.GET("/companions/:companion_id/knowledge", h.ListKnowledgeFiles)
			authed.DELETE("/companions/:companion_id/knowledge/:file_id", h.DeleteKnowledgeFile)

			authed.GET("/companions/:companion_id/messages", h.ListMessages)
		}
	}

	return r
}
