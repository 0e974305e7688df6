package api

import (
	"Inkwell/internal/api/middleware"
	"Inkwell/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		interactionGroup := apiGroup.Group("/interactions")
		{
			// 匿名客户端携带 X-Anon-Token
			optGroup := interactionGroup.Group("")
			optGroup.Use(middleware.AuthOptionalMiddleware())
			{
				optGroup.POST("/likes/:item_id", group.InteractionHandler.Like)
				optGroup.POST("/dislikes/:item_id", group.InteractionHandler.Dislike)
				optGroup.POST("/ratings/:item_id", group.InteractionHandler.Rate)
				optGroup.DELETE("/ratings/:item_id", group.InteractionHandler.Unrate)
				optGroup.POST("/views/:item_id", group.InteractionHandler.View)

				optGroup.POST("/follows/:post_id/toggle", group.FollowHandler.Toggle)
				optGroup.GET("/follows/:post_id", group.FollowHandler.Get)

				optGroup.GET("/stats/:item_id", group.StatsHandler.GetStats)
				optGroup.POST("/stats/batch", group.StatsHandler.BatchStats)
				optGroup.GET("/stories/:story_id/stats", group.StatsHandler.GetStoryStats)
				optGroup.GET("/state/:item_id", group.StatsHandler.GetState)

				optGroup.GET("/rankings/top-rated", group.StatsHandler.TopRated)
				optGroup.GET("/rankings/most-viewed", group.StatsHandler.MostViewed)
				optGroup.GET("/rankings/trending", group.StatsHandler.Trending)
			}

			authGroup := interactionGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/reads/:item_id", group.InteractionHandler.Read)
				authGroup.POST("/sync", group.SyncHandler.Sync)
				authGroup.POST("/sync/pending", group.SyncHandler.MarkPending)
				authGroup.GET("/sync/pending", group.SyncHandler.GetPending)
			}
		}
	}

	return r
}
