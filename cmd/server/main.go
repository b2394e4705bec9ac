package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/chatter/internal/config"
	"github.com/vedran77/chatter/internal/database"
	postgresrepo "github.com/vedran77/chatter/internal/repository/postgres"
	"github.com/vedran77/chatter/internal/service"
	"github.com/vedran77/chatter/internal/transport/http/handlers"
	"github.com/vedran77/chatter/internal/transport/http/middleware"
	"github.com/vedran77/chatter/internal/transport/ws"
	"github.com/vedran77/chatter/pkg/mailer"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg := config.Load()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Services
	authService := service.NewAuthService(userRepo, mailer.NewLogMailer(), cfg.JWTSecret, cfg.ClientURL)
	userService := service.NewUserService(userRepo)
	chatService := service.NewChatService(messageRepo, userRepo)

	// WebSocket gateway
	hub := ws.NewHub(userRepo)
	chatService.SetNotifier(ws.NewHubNotifier(hub))
	go hub.Run()

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	userHandler := handlers.NewUserHandler(userService)
	messageHandler := handlers.NewMessageHandler(chatService)

	// Auth middleware
	auth := middleware.Auth(authService)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/forgot-password", authHandler.ForgotPassword)
	mux.HandleFunc("POST /api/v1/auth/reset-password", authHandler.ResetPassword)

	// WebSocket (authenticated via ?token=)
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, chatService, authService))

	// Protected - Auth
	mux.Handle("GET /api/v1/auth/me", auth(http.HandlerFunc(authHandler.Me)))

	// Protected - Users
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(userHandler.List)))
	mux.Handle("GET /api/v1/users/{id}", auth(http.HandlerFunc(userHandler.Get)))
	mux.Handle("PUT /api/v1/users/profile", auth(http.HandlerFunc(userHandler.UpdateProfile)))

	// Protected - Messages
	mux.Handle("GET /api/v1/messages/conversations", auth(http.HandlerFunc(messageHandler.Conversations)))
	mux.Handle("GET /api/v1/messages/{userId}", auth(http.HandlerFunc(messageHandler.Conversation)))
	mux.Handle("POST /api/v1/messages/{userId}", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Delete)))
	mux.Handle("POST /api/v1/messages/{id}/reactions", auth(http.HandlerFunc(messageHandler.AddReaction)))
	mux.Handle("DELETE /api/v1/messages/{id}/reactions", auth(http.HandlerFunc(messageHandler.RemoveReaction)))

	// Start server with CORS, shut down on SIGINT/SIGTERM
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    addr,
		Handler: middleware.CORS(cfg.ClientURL, mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
