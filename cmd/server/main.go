package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"aur-admin-data/internal/admin"
	"aur-admin-data/internal/config"
	"aur-admin-data/internal/httpserver"
	"aur-admin-data/internal/join"
	"aur-admin-data/internal/logger"
	"aur-admin-data/internal/metrics"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/notify"
	"aur-admin-data/internal/query"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"telegram-alerts-go/alert"
)

const (
	configFilePath  = "/configs/config.yml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:  "aur-admin-server",
		Usage: "admin panel data API with a query cache in front of the backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config",
				Value:   configFilePath,
				Sources: cli.EnvVars("AUR_ADMIN_CONFIG"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("config"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer logger.Sync()

	metrics.Register()

	// the store lives for the whole process and is torn down last
	var storeOpts []store.Option
	if cfg.Cache.MaxEntries > 0 {
		policy, err := store.NewLRUPolicy(cfg.Cache.MaxEntries)
		if err != nil {
			return err
		}
		storeOpts = append(storeOpts, store.WithEviction(policy))
	}
	cacheStore := store.New(storeOpts...)
	defer cacheStore.Close()

	client, err := transport.NewHTTPClient(cfg.Backend, nil)
	if err != nil {
		return err
	}

	memo, err := join.NewMemo(cfg.Join)
	if err != nil {
		return err
	}
	defer memo.Close()

	bus := notify.NewBus()
	sinks := notify.Multi{notify.LogSink{}, bus}
	if cfg.Notifications.Redis.Enabled {
		redisSink, err := notify.NewRedisSink(ctx, cfg.Notifications.Redis)
		if err != nil {
			zap.S().Errorw(alert.Prefix("redis notifications disabled"), "error", err)
		} else {
			defer redisSink.Close()
			sinks = append(sinks, redisSink)
		}
	}

	dispatcher := mutation.NewDispatcher(client, cacheStore, sinks, cfg.Notifications.Life)
	resolver := query.NewResolver(cacheStore,
		query.WithConcurrency(cfg.Cache.Concurrency),
		query.WithFetchTimeout(cfg.Cache.FetchTimeout),
	)
	service := admin.NewService(resolver, client, memo, dispatcher)

	routerApi := httpserver.NewRouter(service, bus)
	routerMetrics := httpserver.NewMetricRouter()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		listenServer(ctx, routerApi, cfg.Server.ApiPort)
	}()

	go func() {
		defer wg.Done()
		listenServer(ctx, routerMetrics, cfg.Server.MetricsPort)
	}()

	wg.Wait()
	zap.S().Infow("servers stopped", "cachedEntries", cacheStore.Len())
	return nil
}

func listenServer(ctx context.Context, router http.Handler, port int) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
		// open notification streams end with the process
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnw("server shutdown", "addr", srv.Addr, "error", err)
		}
	}()

	zap.S().Infow("starting server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Fatalw(alert.Prefix("server error"), "error", err)
	}
}
