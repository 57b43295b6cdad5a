package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	poolconfig "fusdpool/config"
	"fusdpool/core"
	"fusdpool/core/events"
	"fusdpool/observability/logging"
	telemetry "fusdpool/observability/otel"
	"fusdpool/services/poold/config"
	"fusdpool/services/poold/scheduler"
	"fusdpool/services/poold/server"
	"fusdpool/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/poold/config.yaml", "path to poold config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		log.Fatalf("poold: %v", err)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("FUSD_ENV"))
	logger, logCloser := logging.SetupWithOptions("poold", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := initTelemetry(cfg.Telemetry, env)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	poolCfg, err := poolconfig.Load(cfg.PoolConfig)
	if err != nil {
		return fmt.Errorf("load pool config: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(poolCfg.DataDir, "pool"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	stream := events.NewStream(cfg.Stream.History)
	node, err := core.NewNode(db, poolCfg, stream, logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("open pool: %w", err)
	}
	defer node.Close()

	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	srvCfg := server.Config{
		Pool:   node.Engine(),
		Auth:   auth,
		Stream: stream,
		Logger: logger,

		OriginPatterns: cfg.Stream.OriginPatterns,
	}
	if cfg.Operator {
		srvCfg.Operator = node
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			listener.Close()
			return fmt.Errorf("plaintext poold mode is restricted to loopback listeners or dev environment")
		}
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	if cfg.TLS.Enabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertPath, cfg.TLS.KeyPath)
		if err != nil {
			listener.Close()
			return fmt.Errorf("load tls keypair: %w", err)
		}
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(node.Engine(), scheduler.Config{
			Interval:       cfg.Scheduler.Interval,
			PageSize:       cfg.Scheduler.PageSize,
			PagesPerSecond: cfg.Scheduler.PagesPerSecond,
		}, logger)
		if err != nil {
			listener.Close()
			return err
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("poold: scheduler stopped", slog.Any("error", err))
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("poold: listening",
			slog.String("addr", cfg.ListenAddress),
			slog.Bool("tls", cfg.TLS.Enabled()),
			slog.String("native", poolCfg.NativeSymbol))
		if httpServer.TLSConfig != nil {
			serverErr <- httpServer.ServeTLS(listener, "", "")
			return
		}
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("poold: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("poold: forcing server stop", slog.Any("error", err))
			_ = httpServer.Close()
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}

func initTelemetry(cfg config.TelemetryConfig, env string) (func(context.Context) error, error) {
	endpoint := cfg.Endpoint
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		endpoint = value
	}
	insecure := cfg.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	return telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "poold",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Metrics,
		Traces:      cfg.Traces,
		SampleRatio: cfg.SampleRatio,
	})
}

func newAuthenticator(cfg config.AuthConfig) (*server.Authenticator, error) {
	secret, err := cfg.JWT.JWTSecret()
	if err != nil {
		return nil, err
	}
	return server.NewAuthenticator(server.AuthConfig{
		BearerTokens: cfg.APITokens,
		JWTSecret:    secret,
		JWTIssuer:    cfg.JWT.Issuer,
		JWTAudience:  cfg.JWT.Audience,
		Leeway:       cfg.JWT.Leeway,
	})
}
