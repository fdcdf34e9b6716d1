package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3scale-labs/authrep-filter/internal/authrep"
	"github.com/3scale-labs/authrep-filter/internal/filterdriver"
	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/refresher"
	"github.com/3scale-labs/authrep-filter/internal/runtime"
	applog "github.com/3scale-labs/authrep-filter/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var addr string
	var redisAddr string
	var logLevel string
	var logFormat string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filter over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, redisAddr, logLevel, logFormat)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address backing the cross-instance CAS lock")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format: json or text")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("redis-addr", cmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", cmd.Flags().Lookup("log-format"))

	return cmd
}

func runServe(ctx context.Context, addr, redisAddr, logLevel, logFormat string) error {
	logger := applog.NewLogger(applog.Config{Level: logLevel, Format: logFormat, Output: "stdout"})

	cfg, err := loadConfigFromFlags()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	matcherOpts := authrep.DefaultMatcherOptions()
	matcherOpts.Metrics = authrep.NewMetrics(registry)
	matcher, err := authrep.NewMatcher(matcherOpts)
	if err != nil {
		return fmt.Errorf("building authority matcher: %w", err)
	}

	outbound := runtime.NewOutboundDispatcher(http.DefaultClient, logger)
	driver := filterdriver.New(matcher, outbound, logger, filterdriver.NewMetrics(registry))
	server := runtime.NewServer(cfg, driver, outbound, "v1", logger, operation.NewMetrics(registry))

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})

	var scheduler *runtime.Scheduler
	if cfg.System != nil {
		management := runtime.NewManagementDispatcher(http.DefaultClient, cfg.System, logger)
		refresherMetrics := refresher.NewMetrics(registry)
		period := refresher.TickPeriod(cfg.System.TTL, cfg.System.UpstreamTimeout, jitter15s())
		r := refresher.New(redisClient, cfg.System.URL, cfg.System.TTL, cfg.System.UpstreamTimeout, management, logger, refresherMetrics, rand.Float64)
		scheduler = runtime.NewScheduler(cfg, r, management, period, logger)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", server.Handler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	schedulerCtx, cancelScheduler := context.WithCancel(ctx)
	defer cancelScheduler()
	if scheduler != nil {
		go scheduler.Run(schedulerCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("authrepd listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func jitter15s() time.Duration {
	return time.Duration(rand.Float64() * float64(15*time.Second))
}
