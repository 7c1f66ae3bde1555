package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/config"
	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/ipmi"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"codeberg.org/mutker/ipmifanctl/internal/metrics"
	"codeberg.org/mutker/ipmifanctl/internal/notify"
	"codeberg.org/mutker/ipmifanctl/internal/sensor"
	"codeberg.org/mutker/ipmifanctl/internal/status"
	"codeberg.org/mutker/ipmifanctl/internal/telemetry"
	"github.com/oklog/run"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const (
	restoreTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	os.Exit(start())
}

func start() int {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	if err := logger.Init(logger.Options{Level: level, File: cfg.LogFile, IsService: logger.IsService()}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Close()
	logger.Debug().Msg("Config loaded")

	log := logger.Default()
	ipmiCfg := ipmi.Config{
		Path:       cfg.Ipmitool,
		Interface:  cfg.IpmiInterface,
		Sudo:       cfg.Sudo,
		Retries:    cfg.IpmiRetries,
		RetryDelay: cfg.IpmiRetryDelay,
	}
	client := ipmi.NewClient(ipmi.NewRunner(ipmiCfg, log))
	fans := fan.NewController(client, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release, err := startup{
		pidFile:     cfg.PIDFile,
		restoreAuto: cfg.RestoreAuto,
		lookPath:    func() error { return ipmi.LookPath(ipmiCfg) },
		fans:        fans,
	}.acquire(ctx)
	defer release()
	if err != nil {
		return 1
	}

	history := newHistory(cfg, log)
	defer func() {
		if err := history.Close(); err != nil {
			logError(err, "Failed to close decision history")
		}
	}()

	fs := afero.NewOsFs()
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.MaxTempFile = cfg.MaxTempFile
	publisher, err := telemetry.NewPublisher(fs, telemetryCfg)
	if err != nil {
		logError(err, "Invalid telemetry configuration")
		return 1
	}

	loop, err := control.NewLoop(control.Deps{
		Reader:    sensor.NewReader(client, sensor.NewUsageSampler(), cfg.UsageWindow),
		Fan:       fans,
		Publisher: publisher,
		Snapshots: telemetry.NewSnapshotter(fs, telemetryCfg),
		History:   history,
		Notifier:  notify.New(cfg.NotifyCommand, log),
		Logger:    log,
	}, control.Options{
		Interval:         cfg.Interval,
		UsageWindow:      cfg.UsageWindow,
		SettlePause:      cfg.SettlePause,
		ErrorBackoff:     cfg.ErrorBackoff,
		SnapshotEvery:    cfg.SnapshotEvery,
		AlertTemperature: cfg.AlertTemperature,
	})
	if err != nil {
		logError(err, "Invalid control loop options")
		return 1
	}

	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	g.Add(func() error {
		return loop.Run(ctx)
	}, func(error) {
		cancel()
	})

	if cfg.StatusAddr != "" {
		srv := status.NewServer(cfg.StatusAddr, loop, log)
		g.Add(srv.ListenAndServe, func(error) {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to stop status server")
			}
		})
	}

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info().Str("signal", sigErr.Signal.String()).Msg("Received termination signal")
		return 0
	}
	if err != nil {
		logError(err, "Controller stopped")
		return 1
	}

	return 0
}

// newHistory falls back to a disabled collector when the database cannot be
// opened; history is not worth stopping fan control for.
func newHistory(cfg *config.Config, log logger.Logger) metrics.Collector {
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics
	metricsCfg.DBPath = cfg.MetricsDB

	history, err := metrics.NewService(metricsCfg, log)
	if err == nil {
		return history
	}

	logError(err, "Failed to open decision history, continuing without it")
	history, _ = metrics.NewService(metrics.Config{}, log)

	return history
}

func restoreAuto(fans fan.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	if err := fans.EnableAuto(ctx); err != nil {
		logError(errors.New().Wrap(errors.ErrRestoreAutoFan, err), "Failed to restore automatic fan control")
		return
	}
	logger.Info().Msg("Automatic fan control restored")
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
