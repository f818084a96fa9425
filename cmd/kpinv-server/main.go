// Command kpinv-server is the reference backend for the inventory dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	"github.com/rayaadinda/kp-inventory/internal/auth"
	"github.com/rayaadinda/kp-inventory/internal/config"
	"github.com/rayaadinda/kp-inventory/internal/events"
	"github.com/rayaadinda/kp-inventory/internal/logging"
	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/server"
	"github.com/rayaadinda/kp-inventory/internal/store"
	"github.com/rayaadinda/kp-inventory/internal/telemetry"
	"github.com/rayaadinda/kp-inventory/internal/validation"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

const version = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kpinv-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kpinv-server", flag.ContinueOnError)
	cfgPath := fs.String("config", "kpinv.yaml", "Path to YAML config file")
	addr := fs.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.Open(cfg.Server.DBPath, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if fs.Arg(0) == "useradd" {
		return userAdd(db, fs.Args()[1:])
	}

	ctx := context.Background()
	if err := store.SeedAdmin(ctx, db, cfg.Server.AdminEmail, cfg.Server.AdminPass); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if days := cfg.Server.AuditRetentionDays; days > 0 {
		n, err := audit.CleanupOld(ctx, db, days)
		if err != nil {
			log.Warn("audit cleanup failed", zap.Error(err))
		} else if n > 0 {
			log.Info("pruned audit log", zap.Int64("rows", n), zap.Int("retentionDays", days))
		}
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Server.OTLPEndpoint, "kpinv-server", version)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Server.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Server.Kafka.Brokers, cfg.Server.Kafka.Topic)
		log.Info("publishing checkout events", zap.Strings("brokers", cfg.Server.Kafka.Brokers), zap.String("topic", cfg.Server.Kafka.Topic))
	}
	defer publisher.Close()

	secret := cfg.Server.JWTSecret
	if secret == "" {
		log.Warn("server.jwt_secret is empty; using an insecure development secret")
		secret = "kpinv-dev-secret"
	}

	app := &server.App{
		DB:           db,
		Hub:          websocket.NewHub(log),
		Tokens:       auth.NewTokenIssuer(secret, cfg.Server.TokenTTL),
		Events:       publisher,
		Log:          log,
		AllowOrigins: cfg.Server.AllowOrigins,
		RateLimit:    cfg.Server.RateLimit.Requests,
		RateWindow:   cfg.Server.RateLimit.Window,
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("kpinv-server starting", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.Server.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited gracefully")
	return nil
}

// userAdd handles `kpinv-server useradd -email x -password y [-role staff]`.
func userAdd(db *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	password := fs.String("password", "", "Password")
	role := fs.String("role", models.RoleStaff, "Role (admin or staff)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "email", *email)
	validation.ValidateEmail(ve, "email", *email)
	validation.ValidateEnum(ve, "role", *role, validation.ValidRoles)
	if ve.HasErrors() {
		return ve
	}
	if err := auth.ValidatePasswordStrength(*password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	u, err := store.NewUserRepository(db).Create(context.Background(),
		models.User{Name: *name, Email: *email, Role: *role}, hash)
	if err != nil {
		return err
	}
	fmt.Printf("created %s user %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}
