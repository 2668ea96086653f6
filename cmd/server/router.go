package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/avelichko/triplink/internal/handlers"
	"github.com/avelichko/triplink/internal/middleware"
	"github.com/avelichko/triplink/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	roomH *handlers.RoomHandler,
	msgH *handlers.HTTPMessageHandler,
	userH *handlers.UserHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.GET("/users/me", userH.GetMe)
		api.PATCH("/users/me", userH.UpdateMe)
		api.GET("/users/search", userH.SearchUsers)
		api.GET("/users/:id", userH.GetUser)

		api.POST("/rooms", roomH.CreateRoom)
		api.POST("/rooms/private", roomH.CreatePrivateRoom)
		api.GET("/rooms", roomH.GetMyRooms)
		api.GET("/rooms/:id", roomH.GetRoom)
		api.PATCH("/rooms/:id", roomH.UpdateRoom)
		api.POST("/rooms/:id/participants", roomH.AddParticipant)
		api.DELETE("/rooms/:id/participants/me", roomH.LeaveRoom)
		api.GET("/rooms/:id/members", roomH.GetRoomMembers)

		api.GET("/rooms/:id/messages", msgH.GetRoomMessages)
		api.POST("/rooms/:id/messages", msgH.SendMessage)
	}

	// WebSocket
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
