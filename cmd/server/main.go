package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/driftboard/driftboard/internal/asset"
	"github.com/driftboard/driftboard/internal/auth"
	"github.com/driftboard/driftboard/internal/boardapi"
	"github.com/driftboard/driftboard/internal/boardstore"
	"github.com/driftboard/driftboard/internal/config"
	mw "github.com/driftboard/driftboard/internal/middleware"
	"github.com/driftboard/driftboard/internal/notify"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := boardstore.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	authService := auth.NewService(store, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	hub := notify.NewHub()
	go hub.Run()

	boardHandler := boardapi.NewHandler(store, hub)
	assetHandler := asset.NewHandler(cfg.AssetDir, store)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset file serving is public; IDs are unguessable
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")

	api.HandleFunc("/projects", boardHandler.ListProjects).Methods("GET")
	api.HandleFunc("/projects", boardHandler.CreateProject).Methods("POST")
	api.HandleFunc("/projects/{projectId}", boardHandler.GetProject).Methods("GET")
	api.HandleFunc("/projects/{projectId}", boardHandler.DeleteProject).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/canvas", boardHandler.GetCanvas).Methods("GET")
	api.HandleFunc("/projects/{projectId}/canvas", boardHandler.PutCanvas).Methods("PUT")
	api.HandleFunc("/projects/{projectId}/view", boardHandler.GetView).Methods("GET")
	api.HandleFunc("/projects/{projectId}/view", boardHandler.PutView).Methods("PUT")

	api.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	api.HandleFunc("/assets/{assetId}", assetHandler.Get).Methods("GET")
	api.HandleFunc("/assets/{assetId}", assetHandler.Delete).Methods("DELETE")
	api.HandleFunc("/assets/{assetId}/restore", assetHandler.Restore).Methods("POST")

	// WebSocket endpoint for revision-change events
	r.HandleFunc("/ws/project/{projectId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, cfg.Origins())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *notify.Hub, authSvc *auth.Service, origins []string) {
	projectID := mux.Vars(r)["projectId"]

	token := auth.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := authSvc.ValidateToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		patterns = append(patterns, trimScheme(o))
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: patterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := notify.NewClient(hub, conn, projectID, uuid.New().String())
	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

func trimScheme(origin string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
			return origin[len(prefix):]
		}
	}
	return origin
}
