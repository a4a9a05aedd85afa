package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bnb-chain/verivid-hub/cache"
	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/chain"
	"github.com/bnb-chain/verivid-hub/external/ipfs"
	"github.com/bnb-chain/verivid-hub/external/media"
	"github.com/bnb-chain/verivid-hub/external/notify"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/orchestrator"
	"github.com/bnb-chain/verivid-hub/restapi"
	"github.com/bnb-chain/verivid-hub/restapi/handlers"
	"github.com/bnb-chain/verivid-hub/service"
)

func initFlags() {
	flag.String(config.FlagConfigPath, "", "config file path")
	flag.String(config.FlagConfigType, "", "config type, local or aws")
	flag.String(config.FlagConfigAwsRegion, "", "aws region")
	flag.String(config.FlagConfigAwsSecretKey, "", "aws secret key")
	flag.String(config.FlagConfigDbPass, "", "verivid-hub db password")
	flag.String(config.FlagConfigJWTSecret, "", "verivid-hub session signing secret")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
}

func printUsage() {
	fmt.Print("usage: ./verivid-hub --config-type local --config-path configFile\n")
	fmt.Print("usage: ./verivid-hub --config-type aws --aws-region awsRegin --aws-secret-key awsSecretKey\n")
}

// loadConfig reads the config from a local file or from AWS Secrets Manager, nil means bad flags.
func loadConfig() *config.Config {
	configType := viper.GetString(config.FlagConfigType)
	if configType == "" {
		configType = os.Getenv(config.ConfigType)
	}
	if configType == "" {
		configType = config.LocalConfig
	}
	if configType != config.AWSConfig && configType != config.LocalConfig {
		return nil
	}
	if configType == config.AWSConfig {
		awsSecretKey := viper.GetString(config.FlagConfigAwsSecretKey)
		awsRegion := viper.GetString(config.FlagConfigAwsRegion)
		if awsSecretKey == "" || awsRegion == "" {
			return nil
		}
		configContent, err := config.GetSecret(awsSecretKey, awsRegion)
		if err != nil {
			panic(fmt.Sprintf("get aws config error, err=%s", err.Error()))
		}
		return config.ParseConfigFromJson(configContent)
	}
	configFilePath := viper.GetString(config.FlagConfigPath)
	if configFilePath == "" {
		configFilePath = os.Getenv(config.EnvVarConfigFilePath)
		if configFilePath == "" {
			return nil
		}
	}
	return config.ParseConfigFromFile(configFilePath)
}

// applySecrets lets flags and env vars override the secrets of the config file.
func applySecrets(cfg *config.Config) {
	password := viper.GetString(config.FlagConfigDbPass)
	if password == "" {
		password = os.Getenv(config.EnvVarDBUserPass)
		if password == "" {
			password = config.GetDBPass(&cfg.DBConfig)
		}
	}
	cfg.DBConfig.Password = password

	if secret := viper.GetString(config.FlagConfigJWTSecret); secret != "" {
		cfg.AuthConfig.JWTSecret = secret
	} else if secret = os.Getenv(config.EnvVarJWTSecret); secret != "" {
		cfg.AuthConfig.JWTSecret = secret
	}
}

func main() {
	initFlags()
	cfg := loadConfig()
	if cfg == nil {
		printUsage()
		return
	}
	applySecrets(cfg)
	cfg.Validate()
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
	registry := chain.NewClient(&cfg.ChainConfig)
	content := ipfs.NewPinningClient(&cfg.IPFSConfig)
	notifier := notify.NewNotifier(&cfg.NotifyConfig)
	ffmpeg := media.NewFFmpeg(&cfg.PipelineConfig)

	var proofCache cache.Cache = cache.NoopCache{}
	if cfg.CacheConfig.CacheType == config.CacheTypeLocal {
		proofCache, err = cache.NewLocalCache(cfg.CacheConfig.GetCacheSize())
		if err != nil {
			panic(fmt.Sprintf("init cache error, err=%s", err.Error()))
		}
	}

	pipeline := orchestrator.NewOrchestrator(orchestrator.NewDBQueue(dao, cfg.PipelineConfig.Lease()), &cfg.PipelineConfig, notifier)
	orchestrator.NewStages(dao, store, ffmpeg, ffmpeg, content, notifier, cfg.PipelineConfig.TempDir).RegisterAll(pipeline)

	fingerprints := service.NewFingerprintRegistry(dao, store)
	h := handlers.NewHandlers(handlers.Services{
		Auth:         service.NewAuthService(dao, service.NewSessionIssuer(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.SessionTTL()), &cfg.AuthConfig),
		Recovery:     service.NewRecoveryService(dao, notifier, &cfg.AuthConfig, &cfg.ServerConfig),
		Uploads:      service.NewUploadService(dao, fingerprints, store, pipeline, &cfg.ServerConfig, &cfg.StorageConfig),
		Fingerprints: fingerprints,
		Proofs:       service.NewProofService(dao, registry, content, &cfg.ChainConfig),
		Verify:       service.NewVerifyService(dao, registry, proofCache),
		Profiles:     service.NewProfileService(dao),
	}, cfg.ServerConfig.CookieSecure)

	if cfg.MetricsConfig.Enable {
		metrics.NewMetrics(cfg.MetricsConfig.HttpAddress).Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pipeline.MonitorQueue(ctx, orchestrator.MonitorQueueInterval)
	if !cfg.ServerConfig.DisableEmbedWorkers {
		go func() {
			if err := pipeline.Run(ctx); err != nil {
				logging.Logger.Errorf("pipeline stopped, err=%s", err.Error())
			}
		}()
	}

	server := restapi.NewServer(h, &cfg.ServerConfig, &cfg.AuthConfig, nil)
	go server.Start()

	<-ctx.Done()
	logging.Logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("failed to shutdown server, err=%s", err.Error())
	}
}
