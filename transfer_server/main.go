package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	defaultPort           = "3868"
	defaultMaxUsers       = 2
	defaultRoomTimeoutMS  = 3_600_000  // 1 hour
	defaultMaxMessageSize = 10_485_760 // 10MB
)

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func loadConfig() ServerConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	return ServerConfig{
		Port:           port,
		MaxUsers:       envInt("MAX_USERS_PER_ROOM", defaultMaxUsers),
		RoomTimeout:    time.Duration(envInt("ROOM_TIMEOUT_MS", defaultRoomTimeoutMS)) * time.Millisecond,
		MaxMessageSize: int64(envInt("MAX_MESSAGE_SIZE", defaultMaxMessageSize)),
		PacingDelay:    clientPacingDelay,
	}
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func main() {
	_ = godotenv.Load()

	config := loadConfig()
	setAllowedWebSocketOrigins(parseAllowedOriginsFromEnv(os.Getenv("ALLOWED_ORIGINS")))

	server := NewServer(config)

	r := gin.Default()

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 150})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"rooms":  len(server.rooms.ListRooms()),
		})
	})

	r.GET("/ws", server.HandleSocket)

	httpServer := &http.Server{Addr: ":" + config.Port, Handler: r}

	go func() {
		log.Printf("Starting transfer server on port %s (max room users: %d, room timeout: %v)",
			config.Port, config.MaxUsers, config.RoomTimeout)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down transfer server...")

	server.rooms.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("transfer server forced shutdown: %v", err)
	}
}
