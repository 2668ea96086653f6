package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avelichko/triplink/internal/cache"
	"github.com/avelichko/triplink/internal/database"
	"github.com/avelichko/triplink/internal/handlers"
	"github.com/avelichko/triplink/internal/services"
	"github.com/avelichko/triplink/internal/websocket"
	"github.com/avelichko/triplink/pkg/auth"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *websocket.Hub
	JWTManager *auth.JWTManager
	Logger     *zap.SugaredLogger
}

func NewServer() *Server {
	logger := newLogger()

	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			logger.Info(".env not found, using environment variables")
		}
	}

	dbConn := database.NewDatabase(nil, logger)
	if err := dbConn.Connect(); err != nil {
		logger.Fatalf("postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		logger.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	presence := cache.NewPresenceCache(rdb, logger)
	membership := cache.NewMembership(presence, dbConn, logger)
	authorizer := &services.ParticipantAuthorizer{Membership: membership}

	hub := websocket.NewHub(presence, membership, authorizer, logger)
	go hub.Run()

	chatH := handlers.NewChatHandler(dbConn, hub, logger)
	wsH := handlers.NewWebSocketHandler(hub, chatH)
	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	roomH := handlers.NewRoomHandler(dbConn, hub, membership, logger)
	msgH := handlers.NewHTTPMessageHandler(dbConn, chatH, logger)
	userH := handlers.NewUserHandler(dbConn, presence)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, roomH, msgH, userH, wsH)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		Hub:        hub,
		JWTManager: jwtMgr,
		Logger:     logger,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Останавливаем hub по сигналу, чтобы соединения закрылись штатно
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.Logger.Info("shutting down")
		s.Hub.Stop()
		os.Exit(0)
	}()

	s.Logger.Infof("server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		s.Logger.Fatalf("server run error: %v", err)
	}
}

func newLogger() *zap.SugaredLogger {
	var logger *zap.Logger
	var err error

	if os.Getenv("APP_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}

	return logger.Sugar()
}
