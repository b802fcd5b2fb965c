package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"desa-portal/internal/auth"
	"desa-portal/internal/content"
	"desa-portal/internal/db"
	"desa-portal/internal/maintenance"
	"desa-portal/internal/observability"
	"desa-portal/internal/ratelimit"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole portal backend. Configuration errors (missing secret,
// bad limiter parameters) abort here; the process never serves traffic with a
// broken auth or rate-limit setup.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	environment := envOrDefault("APP_ENV", "development")
	secureCookies := environment == "production"

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokenService, err := auth.NewTokenService(
		jwtSecret,
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
	)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, tokenService)
	authHandler := auth.NewHandler(authService, secureCookies)

	if err := bootstrapAdmin(authRepo); err != nil {
		_ = database.Close()
		return nil, err
	}

	apiLimiter, err := ratelimit.New(
		envIntOrDefault("API_RATE_LIMIT_MAX", 100),
		envSecondsOrDefault("API_RATE_LIMIT_WINDOW_SECONDS", 60),
	)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	loginLimiter, err := ratelimit.New(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	sweepInterval := envMinutesOrDefault("RATE_LIMIT_SWEEP_INTERVAL_MINUTES", 5)
	stopAPISweeper := apiLimiter.StartSweeper(sweepInterval)
	stopLoginSweeper := loginLimiter.StartSweeper(sweepInterval)

	sweepHandler := maintenance.NewSweepHandler(
		map[string]*ratelimit.Limiter{"api": apiLimiter, "login": loginLimiter},
		logger,
		os.Getenv("CRON_SECRET"),
	)

	newsRepo := content.NewRepository(database)
	newsHandler := content.NewHandler(newsRepo)

	requireAuth := auth.Middleware(tokenService, secureCookies)
	requireAdmin := auth.RequireRole(auth.RoleAdmin)

	router := chi.NewRouter()

	// Limiting runs before anything that verifies signatures: a throttled
	// client must be rejected before spending CPU on token checks.
	router.Use(func(next http.Handler) http.Handler {
		return observability.RecoverMiddleware(logger, next)
	})
	router.Use(func(next http.Handler) http.Handler {
		return observability.RequestLoggingMiddleware(logger, next)
	})
	router.Use(ratelimit.Middleware(apiLimiter, nil))

	router.Get("/health", healthHandler(database))

	router.Route("/auth", func(r chi.Router) {
		r.With(ratelimit.Middleware(loginLimiter, nil)).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	router.Route("/news", func(r chi.Router) {
		r.Get("/", newsHandler.ListNews)
		r.Get("/{id}", newsHandler.GetNews)
		r.With(requireAuth, requireAdmin).Post("/", newsHandler.CreateNews)
		r.With(requireAuth, requireAdmin).Put("/{id}", newsHandler.UpdateNews)
		r.With(requireAuth, requireAdmin).Delete("/{id}", newsHandler.DeleteNews)
	})

	router.HandleFunc("/internal/maintenance/sweep", sweepHandler.Handle)

	return &Runtime{
		Handler: router,
		Close: func() error {
			stopAPISweeper()
			stopLoginSweeper()
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func bootstrapAdmin(repo *auth.Repository) error {
	email := strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL")))
	password := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	name := strings.TrimSpace(os.Getenv("ADMIN_NAME"))

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if name == "" {
		name = "Administrator"
	}

	return repo.UpsertAdmin(context.Background(), email, name, password)
}

func healthHandler(database *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
