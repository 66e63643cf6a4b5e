package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	toolforgeui "github.com/stonefell/toolforge-web-ui"
	"github.com/stonefell/toolforge-web-ui/internal/handlers"
	"github.com/stonefell/toolforge-web-ui/internal/services"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "toolforgeui")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error loading config file: %w", err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(cfgPath, "cache.db")
	}
	cache, err := services.NewBoltCache(cachePath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening conversation cache: %w", err))
	}
	defer cache.Close()

	api := services.NewAgentService(cfg.AgentServiceURL, logger)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := api.Health(probeCtx); err != nil {
		logger.Warn("Agent service is not reachable yet",
			slog.String("url", cfg.AgentServiceURL),
			slog.String("err", err.Error()))
	} else {
		logger.Info("Agent service is healthy", slog.String("url", cfg.AgentServiceURL))
	}
	probeCancel()

	m, err := handlers.NewMain(api, cache, time.Duration(cfg.StepLogHideDelay), logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating main handler: %w", err))
	}

	// Serve static files
	staticFS, err := fs.Sub(toolforgeui.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/{$}", m.HandleHome)
	mux.HandleFunc("POST /chats", m.HandleChats)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("POST /steps/toggle", m.HandleStepsToggle)
	mux.HandleFunc("POST /conversations", m.HandleConversationCreate)
	mux.HandleFunc("DELETE /conversations/{id}", m.HandleConversationDelete)
	mux.HandleFunc("POST /agents/{name}/toggle", m.HandleAgentToggle)
	mux.HandleFunc("DELETE /agents/{name}", m.HandleAgentDelete)
	mux.HandleFunc("POST /agents/{name}/tools", m.HandleToolAssign)
	mux.HandleFunc("DELETE /agents/{name}/tools/{tool}", m.HandleToolRemove)
	mux.HandleFunc("DELETE /tools/{name}", m.HandleToolDelete)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
