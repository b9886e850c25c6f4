package cmd

import (
	"context"
	"time"

	"github.com/koalasec/photon-sync/internal/archive"
	"github.com/koalasec/photon-sync/internal/config"
	"github.com/koalasec/photon-sync/internal/fetch"
	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/notify"
	"github.com/koalasec/photon-sync/internal/scheduler"
	"github.com/koalasec/photon-sync/internal/service"
	"github.com/koalasec/photon-sync/internal/snapshot"
	"github.com/koalasec/photon-sync/internal/verify"
)

// datasetTopLevel is the directory every photon snapshot archive unpacks to.
const datasetTopLevel = "photon_data"

// app holds the wired pipeline components shared by the run and update
// commands.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *snapshot.Store
	sched *scheduler.Scheduler
}

// buildApp loads the configuration and wires the pipeline. withService
// controls whether the scheduler manages the photon process; the one-shot
// update command leaves the process alone.
func buildApp(withService bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(&logger.Config{Level: cfg.LogLevel, Location: logLocation(cfg)})

	store, err := snapshot.Open(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	var fetchOpts []fetch.Option
	if cfg.DownloadRateLimit > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRateLimit(cfg.DownloadRateLimit))
	}
	fetcher := fetch.New(log, fetchOpts...)

	installer := archive.New(log,
		archive.WithExpectedTopLevel(datasetTopLevel),
		archive.WithOwnership(cfg.RunUID, cfg.RunGID),
	)

	var controller scheduler.Controller = nopController{}
	if withService {
		controller = service.NewController(service.Options{
			JavaBin:        cfg.JavaBin,
			JarPath:        cfg.JarPath,
			JavaArgs:       cfg.JavaArgs,
			ConsumerArgs:   cfg.ConsumerArgs,
			ProbeURL:       cfg.ServiceURL,
			StartupTimeout: cfg.ServiceStartupTimeout,
		}, log)
	}

	notifier := notify.New(log, cfg.NotifyURLs)
	sched := scheduler.New(cfg, store, fetcher, verify.New(nil), installer, controller, notifier, log)

	return &app{cfg: cfg, log: log, store: store, sched: sched}, nil
}

func logLocation(cfg *config.Config) string {
	if cfg.LogFile != "" {
		return cfg.LogFile
	}
	return "stdout"
}

// nopController satisfies the scheduler when no process is under management.
type nopController struct{}

func (nopController) Start(context.Context, string) error { return nil }
func (nopController) Stop(time.Duration) error            { return nil }
func (nopController) Running() bool                       { return false }
