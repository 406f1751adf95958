package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes mounts the messaging endpoints on an authenticated group
func RegisterMessageRoutes(group *gin.RouterGroup, handler *MessageHandler, feeds *FeedHandler) {
	conversations := group.Group("/conversations")
	{
		conversations.POST("", handler.StartConversation)
		conversations.GET("", handler.ListConversations)
		conversations.GET("/:id", handler.GetConversation)
		conversations.GET("/:id/messages", handler.ListMessages)
		conversations.POST("/:id/messages", handler.SendMessage)
		conversations.POST("/:id/summary/recompute", handler.RecomputeSummary)
		conversations.GET("/:id/ws", feeds.WatchMessages)
	}

	group.GET("/ws/conversations", feeds.WatchConversations)
}
