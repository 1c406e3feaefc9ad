package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soaringjerry/Mindwell/internal/api"
	"github.com/soaringjerry/Mindwell/internal/config"
	dbstore "github.com/soaringjerry/Mindwell/internal/db"
	"github.com/soaringjerry/Mindwell/internal/middleware"
	"github.com/soaringjerry/Mindwell/internal/platform/logger"
	"github.com/soaringjerry/Mindwell/internal/services"
	"github.com/soaringjerry/Mindwell/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mindwell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode, cfg.LogHashSalt)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := services.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("load instrument registry: %w", err)
	}
	catalog, err := services.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("load achievement catalog: %w", err)
	}

	var store api.Store
	if cfg.SQLitePath != "" {
		sqlite, err := dbstore.Open(ctx, cfg.SQLitePath, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sqlite.Close(); cerr != nil {
				log.Warn("failed to close sqlite db", "error", cerr)
			}
		}()
		store = sqlite
		log.Info("using sqlite store", "path", cfg.SQLitePath)
	} else {
		store = api.NewMemoryStore()
		log.Warn("MINDWELL_SQLITE_PATH not set, data is kept in memory only")
	}

	mux := http.NewServeMux()
	api.NewRouter(store, registry, catalog, services.ProgressOptions{
		Timeout:  cfg.SourceTimeout,
		Location: cfg.Location(),
		Logger:   log,
	}).Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		locale := middleware.LocaleFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          true,
			"name":        "Mindwell API",
			"locale":      locale,
			"msg":         utils.T(locale, "health.ok"),
			"instruments": len(registry.List()),
			"commit":      cfg.Commit,
			"build_time":  cfg.BuildTime,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	})

	// Frontend: static files when a directory is configured, otherwise a dev
	// proxy when a frontend URL is.
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	} else if cfg.DevFrontendURL != "" {
		if u, err := url.Parse(cfg.DevFrontendURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				return nil
			}
			mux.Handle("/", rp)
		} else {
			log.Warn("invalid MINDWELL_DEV_FRONTEND_URL", "url", cfg.DevFrontendURL, "error", err)
		}
	}

	auth := middleware.NewAuthenticator(cfg.JWTSecret)
	handler := middleware.CORS(cfg.CORSOrigin)(
		middleware.SecureHeaders(
			middleware.NoStore(
				middleware.LocaleMiddleware(
					auth.WithAuth(mux)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Mindwell server listening", "addr", cfg.Addr, "commit", cfg.Commit)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
