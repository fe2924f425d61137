package main

import (
	"context"
	"log"
	"net/http"

	"pulse/backend/internal/api/handler"
	"pulse/backend/internal/auth"
	"pulse/backend/internal/chathub"
	"pulse/backend/internal/config"
	"pulse/backend/internal/conversations"
	"pulse/backend/internal/models"
	"pulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Pulse backend...")

	cfg := config.Load()
	db, rdb := setupDependencies(cfg)

	store := storage.NewService(db, rdb)
	authSvc := auth.NewService(store, cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	convSvc := conversations.NewService(store)

	gateway := chathub.NewGateway(store)
	go gateway.Run()

	r := gin.Default()
	h := handler.NewHandler(gateway, store, authSvc, convSvc)

	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.GET("/ws", h.ServeWebSocket)

	authed := r.Group("/api", h.RequireAuth())
	{
		authed.GET("/messages/conversations", h.GetConversations)
		authed.GET("/messages/thread/:userID", h.Thread)
		authed.POST("/messages/send", h.Send)
		authed.POST("/messages/thread/:userID/read", h.MarkThreadRead)
		authed.GET("/users/:userID/status", h.UserStatus)
	}

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
