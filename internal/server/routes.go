package server

import (
	"net/http"

	"voting-service/internal/server/handlers"
	"voting-service/internal/server/middleware"
	"voting-service/internal/ws"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all the routes for the application.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	pollHandler *handlers.PollHandler,
	votingHandler *handlers.VotingHandler,
	hub *ws.Hub,
) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		public.GET("/polls", pollHandler.ListPolls)
		public.GET("/polls/:poll_id", pollHandler.GetPoll)
		public.GET("/polls/:poll_id/results", votingHandler.GetResults)
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtSecret))
	{
		protected.POST("/polls", pollHandler.CreatePoll)
		protected.PATCH("/polls/:poll_id", pollHandler.UpdatePoll)
		protected.PUT("/polls/:poll_id/status", pollHandler.SetStatus)
		protected.POST("/polls/:poll_id/cancel", pollHandler.CancelPoll)
		protected.DELETE("/polls/:poll_id", pollHandler.DeletePoll)
		protected.POST("/polls/:poll_id/options/:option_index/image", pollHandler.UploadOptionImage)

		protected.POST("/polls/:poll_id/vote", votingHandler.CastVote)
		protected.GET("/polls/:poll_id/can-vote", votingHandler.CanVote)

		admin := protected.Group("/")
		admin.Use(middleware.RequireAdmin())
		{
			admin.DELETE("/votes/:vote_id", votingHandler.RetractVote)
		}

		protected.GET("/ws", func(c *gin.Context) {
			identity, err := middleware.GetIdentityFromContext(c.Request.Context())
			if err != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			ws.ServeWs(hub, c.Writer, c.Request, identity.UserID)
		})
	}
}
