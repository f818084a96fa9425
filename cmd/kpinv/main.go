// Command kpinv is the terminal dashboard for the inventory backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/cart"
	"github.com/rayaadinda/kp-inventory/internal/config"
	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/logging"
	"github.com/rayaadinda/kp-inventory/internal/session"
	"github.com/rayaadinda/kp-inventory/internal/shell"
	"github.com/rayaadinda/kp-inventory/internal/telemetry"
)

const (
	version    = "1.0.0"
	watchRetry = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kpinv:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kpinv", flag.ContinueOnError)
	cfgPath := fs.String("config", "kpinv.yaml", "Path to YAML config file")
	apiURL := fs.String("api", "", "Backend base URL (overrides config)")
	noWatch := fs.Bool("no-watch", false, "Do not subscribe to inventory change notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	policy, err := cfg.StockPolicy()
	if err != nil {
		return err
	}

	// Log to stderr at warn and above unless configured otherwise so the
	// prompt stays readable.
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Server.OTLPEndpoint, "kpinv", version)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracer(context.Background())
	}

	auth, err := session.NewAuthContext(session.NewStore(cfg.StoragePath))
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	gw := gateway.New(cfg.APIURL, auth, gateway.WithLogger(log))

	var cartOpts []cart.Option
	if !cfg.StrictCartMerge() {
		cartOpts = append(cartOpts, cart.WithUncappedMerge())
	}
	sh := shell.New(gw, auth, policy, os.Stdout,
		shell.WithLogger(log),
		shell.WithCartOptions(cartOpts...),
	)

	if !*noWatch {
		go sh.Watch(ctx, gw, watchRetry)
	}

	// Unblock the prompt on Ctrl-C.
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	fmt.Printf("kpinv %s connected to %s, type help for commands\n", version, cfg.APIURL)
	return sh.Run(ctx, os.Stdin)
}
