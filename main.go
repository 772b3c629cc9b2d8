// Package main our entry point.
package main

import (
	"context"
	"embed"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	goosev3 "github.com/pressly/goose/v3"

	"github.com/chatline/chatline/internal"
	"github.com/chatline/chatline/internal/handler"
	ratelimiter "github.com/chatline/chatline/internal/rate_limiter"
	"github.com/chatline/chatline/internal/store"
	ws "github.com/chatline/chatline/internal/websocket"
)

//go:embed sql/schema/*.sql
var embedMigrations embed.FS

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	// Init DB
	log.Println("Starting application...")
	log.Println("Initializing Database connection...")

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL environment variable is not set")
	}

	dbConn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}

	// Apply pending migrations before taking traffic.
	goosev3.SetBaseFS(embedMigrations)
	if err := goosev3.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}
	migDB := stdlib.OpenDBFromPool(dbConn)
	if err := goosev3.Up(migDB, "sql/schema"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	if err := migDB.Close(); err != nil {
		log.Printf("failed to close migration connection: %v", err)
	}

	st := store.New(dbConn)

	// hub.Run is our central hub that is always listening for client
	// related events.
	hub := ws.NewHub(st)
	go hub.Run(ctx)

	rl := ratelimiter.NewIPRateLimiter(60, time.Minute, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer rl.Cancel()

	r := chi.NewRouter()
	r.Use(rl.Middleware)

	r.Post("/api/auth/signup", handler.Signup(st))
	r.Post("/api/auth/login", handler.Login(st))
	r.Post("/api/auth/logout", handler.Logout())

	r.Group(func(r chi.Router) {
		r.Use(internal.Middleware)
		r.Get("/people", handler.ServePeople(st))
		r.Get("/chats/{viewer}/{peer}", handler.ServeChats(st, hub))
		r.Get("/ws", handler.ServeWs(hub, st))
	})

	server.Handler = r

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	// Close DB connection.
	dbConn.Close()

	log.Println("Server stopped")
}
