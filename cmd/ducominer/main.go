package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/djkazic/ducominer/internal/config"
	"github.com/djkazic/ducominer/internal/identity"
	"github.com/djkazic/ducominer/internal/indicator"
	"github.com/djkazic/ducominer/internal/link"
	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/miner"
	"github.com/djkazic/ducominer/internal/pacer"
	"github.com/djkazic/ducominer/internal/poolapi"
	"github.com/djkazic/ducominer/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "ducominer",
		Short:        "Self-healing DUCO-S1 mining client",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(".env")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyHost, "", "coordinator host (empty: ask the pool API)")
	f.Int(config.KeyPort, 0, "coordinator port")
	f.String(config.KeyUser, "", "mining account name")
	f.String(config.KeyRigID, config.AutoRigID, `rig identifier ("auto" derives it from the device)`)
	f.String(config.KeyMinerKey, "", "mining key")
	f.String(config.KeyVersion, config.DefaultVersion, "client version reported with each share")
	f.String(config.KeyStartDiff, config.DefaultStartDiff, "starting difficulty tier")
	f.String(config.KeyWalletID, "", "wallet identifier (random if empty)")
	f.String(config.KeyBanner, config.DefaultBanner, "client banner reported with each share")
	f.String(config.KeyPoolURL, config.DefaultPoolURL, "pool locator URL")
	f.Int(config.KeyCores, config.DefaultCores, "number of mining workers")
	f.Duration(config.KeyYieldInterval, pacer.DefaultInterval, "cooperative yield cadence")
	f.String(config.KeyMetricsAddr, "", "listen address for /metrics and /status (empty: disabled)")
	f.String(config.KeyLogLevel, config.DefaultLogLevel, "log level")
	f.String(config.KeyLinkInterface, "", "network interface to watch (empty: any)")
	f.Bool(config.KeyPinCores, true, "pin each worker to its CPU")

	config.SetDefaults(v)
	config.BindEnv(v)
	// Flags override the environment only when set explicitly.
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceID, err := identity.DeviceID()
	if err != nil {
		logger.Warn("device identity unavailable, using placeholder", zap.Error(err))
		deviceID = identity.Normalize("ducominer")
	}
	cfg.ResolveRigID(deviceID)

	shared := telemetry.New(cfg.Cores)

	if cfg.Host == "" {
		if err := locate(ctx, poolapi.NewClient(cfg.PoolURL), cfg, shared, logger); err != nil {
			return err
		}
	}

	logger.Info("starting miner",
		zap.String("user", cfg.User),
		zap.String("rig_id", cfg.RigID),
		zap.String("device_id", deviceID),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("cores", cfg.Cores),
		zap.Duration("yield_interval", cfg.YieldInterval),
	)

	if cfg.MetricsAddr != "" {
		srv := newStatusServer(cfg.MetricsAddr, shared)
		go func() {
			logger.Info("status server listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	coord := miner.NewCoordinator(cfg, miner.Deps{
		Link:      link.HostDriver{Interface: cfg.LinkInterface},
		Shared:    shared,
		Indicator: indicator.NewLogger(logger.Named("indicator")),
		DeviceID:  deviceID,
		Timeouts:  miner.DefaultTimeouts(),
		Logger:    logger,
	})
	return coord.Run(ctx)
}

// locate points cfg at the coordinator node the pool API hands out.
func locate(ctx context.Context, loc poolapi.Locator, cfg *config.Config, shared *telemetry.Shared, logger *zap.Logger) error {
	pool, err := loc.GetPool(ctx)
	if err != nil {
		return fmt.Errorf("locate coordinator: %w", err)
	}
	cfg.Host = pool.IP
	cfg.Port = pool.Port
	shared.SetNode(pool.Name)
	logger.Info("located coordinator",
		zap.String("node", pool.Name),
		zap.String("host", pool.IP),
		zap.Int("port", pool.Port),
	)
	return nil
}

func newStatusServer(addr string, shared *telemetry.Shared) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/status", telemetry.StatusHandler(shared))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
