package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshsymonds/hostsweep/internal/config"
	"github.com/joshsymonds/hostsweep/internal/mailer"
	"github.com/joshsymonds/hostsweep/internal/rate"
	"github.com/joshsymonds/hostsweep/internal/report"
	"github.com/joshsymonds/hostsweep/internal/rotate"
	"github.com/joshsymonds/hostsweep/internal/runtime"
)

type cliConfig struct {
	configPath string
	logLevel   string
	dryRun     bool
	gzip       bool
}

func main() {
	cli := parseFlags()
	if err := run(cli); err != nil {
		logger := runtime.NewLogger(cli.logLevel)
		logger.Error().Err(err).Msg("hostsweep failed")
		os.Exit(1)
	}
}

func parseFlags() cliConfig {
	configPath := flag.String("config", "hostsweep.yaml", "path to the configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	dryRun := flag.Bool("dry-run", false, "fetch and join only; skip rotation, report file, and mail")
	gzipFlag := flag.Bool("gzip", false, "rotate the previous report to .gz instead of .zip")
	flag.Parse()

	return cliConfig{
		configPath: *configPath,
		logLevel:   *logLevel,
		dryRun:     *dryRun,
		gzip:       *gzipFlag,
	}
}

func run(cli cliConfig) error {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if cli.logLevel != "" {
		level = cli.logLevel
	}
	logger := runtime.NewLogger(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Rotation happens before the first network call so a failed run never
	// clobbers the previous report's archive.
	if !cli.dryRun {
		rotateFn := rotate.Rotate
		if cli.gzip {
			rotateFn = rotate.RotateGzip
		}
		archive, rotateErr := rotateFn(cfg.Report.Output, time.Now())
		if rotateErr != nil {
			return fmt.Errorf("rotate previous report: %w", rotateErr)
		}
		if archive != "" {
			logger.Info().Str("archive", archive).Msg("rotated previous report")
		}
	}

	var limiter rate.Limiter = rate.Unlimited{}
	if cfg.API.RPS > 0 {
		bucket := rate.NewTokenBucket(cfg.API.RPS)
		defer bucket.Stop()
		limiter = bucket
	}

	client, err := runtime.NewFalconClient(ctx, cfg, limiter, logger)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	svc := report.NewService(client, logger)
	summary, err := svc.Run(ctx, report.Spec{
		PageSize:            cfg.API.PageSize,
		Chunks:              cfg.Report.Chunks,
		AlertThresholdHours: cfg.Report.AlertThresholdHours,
		Output:              cfg.Report.Output,
		DryRun:              cli.dryRun,
	})
	if err != nil {
		return fmt.Errorf("run report pipeline: %w", err)
	}

	if cli.dryRun || !cfg.MailEnabled() {
		return nil
	}

	m := mailer.New(mailer.Options{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		From:       cfg.SMTP.From,
		Subject:    cfg.SMTP.Subject,
		Recipients: cfg.SMTP.RecipientList(),
	})
	if mailErr := m.SendReport(cfg.Report.Output); mailErr != nil {
		// A written report is still a successful run.
		logger.Error().Err(mailErr).Msg("report mail failed")
	} else {
		logger.Info().Int("rows", summary.Rows).Strs("to", cfg.SMTP.RecipientList()).Msg("report mailed")
	}
	return nil
}
