package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callcenter-console/internal/api"
	"github.com/callcenter-console/internal/config"
	"github.com/callcenter-console/internal/router"
	"github.com/callcenter-console/internal/throttle"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "Path to the YAML config file")
		httpPort   = flag.Int("port", 0, "HTTP server port (overrides config)")
		dbDriver   = flag.String("driver", "", "Database driver: mysql, postgres or sqlite (overrides config)")
		dbDSN      = flag.String("dsn", "", "Database DSN (overrides config)")
	)
	flag.Parse()

	// Setup logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.Printf("Starting call center backend...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *httpPort != 0 {
		cfg.Server.Port = *httpPort
	}
	if *dbDriver != "" {
		cfg.Database.Driver = *dbDriver
	}
	if *dbDSN != "" {
		cfg.Database.DSN = *dbDSN
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := run(cfg, sigChan); err != nil {
		log.Fatalf("%v", err)
	}
}

// run serves until stop delivers a signal or the listener fails. The router
// is closed on every path.
func run(cfg *config.Config, stop <-chan os.Signal) error {
	// Initialize router
	r, err := router.Open(router.Options{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DataSourceName(),
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime.Std(),
		DispatchInterval: cfg.Routing.DispatchInterval.Std(),
		BcryptCost:       cfg.Auth.BcryptCost,
		AdminUsername:    cfg.Auth.AdminUsername,
		AdminPassword:    cfg.Auth.AdminPassword,
		AdminFullName:    cfg.Auth.AdminFullName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}
	defer r.Close()

	opts := []api.Option{
		api.WithCallLimit(cfg.Server.CallLimit),
		api.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
	if cfg.Auth.MaxAttempts > 0 {
		opts = append(opts, api.WithLockout(newLockout(cfg)))
	}

	// Start API server
	apiServer := api.NewServer(r, cfg.Server.Port, opts...)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.Start()
	}()

	log.Printf("Backend started on port %d (driver=%s)", cfg.Server.Port, cfg.Database.Driver)
	log.Printf("Endpoints:")
	log.Printf("  - /api/auth")
	log.Printf("  - /api/users")
	log.Printf("  - /api/calls")
	log.Printf("  - /api/stats")
	log.Printf("  - /api/health")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	case <-stop:
	}

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	return nil
}

// newLockout shares failure counters through Redis when configured and
// falls back to process memory otherwise.
func newLockout(cfg *config.Config) throttle.Lockout {
	window := cfg.Auth.LockoutWindow.Std()
	if cfg.Redis.Addr == "" {
		log.Printf("Login lockout kept in memory (no redis configured)")
		return throttle.NewMemoryLockout(cfg.Auth.MaxAttempts, window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis at %s unreachable (%v), keeping login lockout in memory", cfg.Redis.Addr, err)
		client.Close()
		return throttle.NewMemoryLockout(cfg.Auth.MaxAttempts, window)
	}
	log.Printf("Login lockout backed by redis at %s", cfg.Redis.Addr)
	return throttle.NewRedisLockout(client, cfg.Auth.MaxAttempts, window)
}
