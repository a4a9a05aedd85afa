package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/ipfs"
	"github.com/bnb-chain/verivid-hub/external/media"
	"github.com/bnb-chain/verivid-hub/external/notify"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/orchestrator"
)

type options struct {
	ConfigPath string `short:"c" long:"config-path" env:"CONFIG_FILE_PATH" description:"config file path" required:"true"`
	DBPass     string `long:"db-pass" env:"DB_PASSWORD" description:"verivid-hub db password"`
	Workers    int    `short:"w" long:"workers" description:"number of pipeline workers, overrides the config"`
	Metrics    bool   `long:"metrics" description:"serve prometheus metrics on the configured address"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	cfg := config.ParseConfigFromFile(opts.ConfigPath)
	if opts.DBPass != "" {
		cfg.DBConfig.Password = opts.DBPass
	} else {
		cfg.DBConfig.Password = config.GetDBPass(&cfg.DBConfig)
	}
	if opts.Workers > 0 {
		cfg.PipelineConfig.WorkerNum = opts.Workers
	}
	cfg.LogConfig.Validate()
	cfg.DBConfig.Validate()
	cfg.StorageConfig.Validate()
	logging.InitLogger(&cfg.LogConfig)

	gormDB := config.InitDBWithConfig(&cfg.DBConfig, false)
	if err := db.AutoMigrateDB(gormDB); err != nil {
		panic(fmt.Sprintf("migrate db error, err=%s", err.Error()))
	}
	dao := db.NewVeriVidSvcDB(gormDB)
	store, err := storage.NewStorage(&cfg.StorageConfig)
	if err != nil {
		panic(fmt.Sprintf("init storage error, err=%s", err.Error()))
	}
	notifier := notify.NewNotifier(&cfg.NotifyConfig)
	ffmpeg := media.NewFFmpeg(&cfg.PipelineConfig)

	pipeline := orchestrator.NewOrchestrator(orchestrator.NewDBQueue(dao, cfg.PipelineConfig.Lease()), &cfg.PipelineConfig, notifier)
	orchestrator.NewStages(dao, store, ffmpeg, ffmpeg, ipfs.NewPinningClient(&cfg.IPFSConfig), notifier, cfg.PipelineConfig.TempDir).RegisterAll(pipeline)

	if opts.Metrics {
		metrics.NewMetrics(cfg.MetricsConfig.HttpAddress).Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go pipeline.MonitorQueue(ctx, orchestrator.MonitorQueueInterval)
	if err = pipeline.Run(ctx); err != nil {
		logging.Logger.Errorf("pipeline stopped, err=%s", err.Error())
	}
}
