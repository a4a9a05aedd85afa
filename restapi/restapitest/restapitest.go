// Package restapitest runs the api against in-memory collaborators for tests.
package restapitest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/cache"
	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/db/dbtest"
	"github.com/bnb-chain/verivid-hub/external/mock"
	"github.com/bnb-chain/verivid-hub/orchestrator"
	"github.com/bnb-chain/verivid-hub/restapi"
	"github.com/bnb-chain/verivid-hub/restapi/handlers"
	"github.com/bnb-chain/verivid-hub/service"
)

var Contract = common.HexToAddress("0x00000000000000000000000000000000000c0de1")

const ChainID = 97

type Env struct {
	Server   *httptest.Server
	Dao      db.VeriVidDao
	Storage  *mock.Storage
	Registry *mock.RegistryClient
	Content  *mock.ContentStore
	Notifier *mock.Notifier
	Media    *mock.Media
	Pipeline *orchestrator.Orchestrator
}

func Config() *config.Config {
	cfg := &config.Config{
		ServerConfig: config.ServerConfig{
			FrontendURL:     "http://verivid.local",
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			MaxUploadSize:   1 << 20,
		},
		AuthConfig: config.AuthConfig{
			JWTSecret:         "test-secret",
			RecoveryPerMinute: 3,
		},
		ChainConfig: config.ChainConfig{
			RPCAddrs:                   []string{"http://127.0.0.1:8545"},
			ChainID:                    ChainID,
			ContractAddress:            Contract.Hex(),
			ConfirmTimeoutSeconds:      1,
			ConfirmPollIntervalSeconds: 1,
		},
		StorageConfig: config.StorageConfig{StorageType: config.StorageTypeLocal, LocalDir: "unused"},
		PipelineConfig: config.PipelineConfig{
			WorkerNum:          2,
			PollIntervalMillis: 10,
			MaxAttempts:        3,
		},
	}
	cfg.SetDefaults()
	return cfg
}

// NewEnv serves the api on an httptest server. The public url of the server is patched into the
// config before the services are built, so upload urls point at it.
func NewEnv(t *testing.T) *Env {
	cfg := Config()
	env := &Env{
		Dao:      dbtest.NewDao(t),
		Storage:  mock.NewStorage(),
		Registry: mock.NewRegistryClient(Contract, ChainID),
		Content:  mock.NewContentStore(),
		Notifier: mock.NewNotifier(),
		Media:    mock.NewMedia(),
	}
	env.Server = httptest.NewUnstartedServer(nil)
	cfg.ServerConfig.PublicURL = "http://" + env.Server.Listener.Addr().String()
	cfg.PipelineConfig.TempDir = t.TempDir()

	env.Pipeline = orchestrator.NewOrchestrator(orchestrator.NewDBQueue(env.Dao, cfg.PipelineConfig.Lease()), &cfg.PipelineConfig, env.Notifier)
	orchestrator.NewStages(env.Dao, env.Storage, env.Media, env.Media, env.Content, env.Notifier, cfg.PipelineConfig.TempDir).RegisterAll(env.Pipeline)

	proofCache, err := cache.NewLocalCache(cfg.CacheConfig.GetCacheSize())
	require.NoError(t, err)
	fingerprints := service.NewFingerprintRegistry(env.Dao, env.Storage)
	h := handlers.NewHandlers(handlers.Services{
		Auth:         service.NewAuthService(env.Dao, service.NewSessionIssuer(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.SessionTTL()), &cfg.AuthConfig),
		Recovery:     service.NewRecoveryService(env.Dao, env.Notifier, &cfg.AuthConfig, &cfg.ServerConfig),
		Uploads:      service.NewUploadService(env.Dao, fingerprints, env.Storage, env.Pipeline, &cfg.ServerConfig, &cfg.StorageConfig),
		Fingerprints: fingerprints,
		Proofs:       service.NewProofService(env.Dao, env.Registry, env.Content, &cfg.ChainConfig),
		Verify:       service.NewVerifyService(env.Dao, env.Registry, proofCache),
		Profiles:     service.NewProfileService(env.Dao),
	}, false)
	env.Server.Config.Handler = restapi.NewHandler(h, &cfg.ServerConfig, &cfg.AuthConfig, nil)
	env.Server.Start()
	t.Cleanup(env.Server.Close)
	return env
}

// RunPipeline drains the job queue synchronously.
func (e *Env) RunPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		processed, err := e.Pipeline.RunOnce(ctx)
		require.NoError(t, err)
		if !processed {
			return
		}
	}
}

type Wallet struct {
	key     *ecdsa.PrivateKey
	Address string
}

func NewWallet(t *testing.T) *Wallet {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &Wallet{key: key, Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w *Wallet) Common() common.Address {
	return common.HexToAddress(w.Address)
}

// SignText signs message with personal_sign semantics.
func (w *Wallet) SignText(t *testing.T, message string) string {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return fmt.Sprintf("0x%x", sig)
}
