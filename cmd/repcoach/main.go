package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/claude/repcoach/internal/completion"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/lookup"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/server"
	"github.com/claude/repcoach/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to migration files")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	log.Info("RepCoach starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, *migrationsPath); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Completion pipeline
	mode, err := completion.ParseMode(strings.ToLower(cfg.Completion.Procedure))
	if err != nil {
		log.Error("invalid completion mode", "error", err)
		os.Exit(1)
	}
	selector := completion.NewSelector(mode, db, cfg.Completion.ProbeTTL, log)
	pipeline := completion.NewPipeline(db, selector, log)
	log.Info("completion pipeline ready", "procedure", mode)

	// Exercise catalogue; without an API key the search surfaces stay off.
	var (
		httpSearch server.Searcher
		mcpSearch  mcp.Searcher
	)
	if cfg.Lookup.APIKey != "" {
		cache, err := lookup.OpenCache(cfg.Lookup.CacheDir)
		if err != nil {
			log.Error("failed to open lookup cache", "dir", cfg.Lookup.CacheDir, "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		if n, err := cache.Prune(ctx, time.Now().Add(-cfg.Lookup.CacheTTL)); err != nil {
			log.Warn("lookup cache prune failed", "error", err)
		} else if n > 0 {
			log.Info("lookup cache pruned", "entries", n)
		}

		client := lookup.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, cache, cfg.Lookup.CacheTTL, log)
		httpSearch, mcpSearch = client, client
		log.Info("exercise lookup enabled", "base_url", cfg.Lookup.BaseURL)
	} else {
		log.Warn("lookup.api_key not set: exercise search disabled")
	}

	// Create server
	srv := server.New(db, pipeline, httpSearch, cfg.Auth, log)
	srv.MountMCP(mcp.New(db, mcpSearch, Version, log))

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
