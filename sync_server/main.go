package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"e2eeserver/db"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	port := os.Getenv("SYNC_PORT")
	if port == "" {
		port = "3869"
	}
	dbPath := os.Getenv("SYNC_DB_FILE")
	if dbPath == "" {
		dbPath = "./sync.db"
	}
	jwtSecret := os.Getenv("SYNC_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("SYNC_JWT_SECRET is required")
	}

	db.SyncDB, err = db.InitSQLite(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB(db.SyncDB)

	if err := InitSchema(db.SyncDB); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}

	store := NewSyncStore(db.SyncDB)
	handler := NewSyncHandler(store, LogNotifier{}, []byte(jwtSecret))

	router := gin.Default()
	router.Use(cors.Default())

	rateStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 30,
	})
	router.Use(ratelimit.RateLimiter(rateStore, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/sync", handler.AuthMiddleware())
	api.POST("/check", handler.HandleCheck)
	api.POST("/upload", handler.HandleUpload)
	api.POST("/download", handler.HandleDownload)
	api.POST("/flush", handler.HandleFlush)

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Sync server listening on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down sync server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
