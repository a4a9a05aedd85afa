package service

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/cache"
	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/db/dbtest"
	"github.com/bnb-chain/verivid-hub/external/mock"
	"github.com/bnb-chain/verivid-hub/orchestrator"
	"github.com/bnb-chain/verivid-hub/util"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000c0de1")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testWallet struct {
	key     *ecdsa.PrivateKey
	Address string
}

func newTestWallet(t *testing.T) *testWallet {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testWallet{key: key, Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w *testWallet) Common() common.Address {
	return common.HexToAddress(w.Address)
}

// Sign signs digest the way wallets return it, with v in {27, 28}.
func (w *testWallet) Sign(t *testing.T, digest []byte) string {
	sig, err := crypto.Sign(digest, w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return fmt.Sprintf("0x%x", sig)
}

type fixture struct {
	clock    *testClock
	dao      db.VeriVidDao
	storage  *mock.Storage
	registry *mock.RegistryClient
	content  *mock.ContentStore
	notifier *mock.Notifier
	queue    *orchestrator.MemoryQueue

	authCfg  *config.AuthConfig
	chainCfg *config.ChainConfig

	sessions     *SessionIssuer
	auth         *AuthService
	fingerprints *FingerprintRegistry
	uploads      *UploadService
	proofs       *ProofService
	verify       *VerifyService
	recovery     *RecoveryService
	profiles     *ProfileService
}

func newFixture(t *testing.T) *fixture {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:    clock,
		dao:      dbtest.NewDao(t),
		storage:  mock.NewStorage(),
		registry: mock.NewRegistryClient(testContract, 97),
		content:  mock.NewContentStore(),
		notifier: mock.NewNotifier(),
		queue:    orchestrator.NewMemoryQueue(time.Minute),
		authCfg: &config.AuthConfig{
			JWTSecret:          "test-secret",
			SessionTTLHours:    1,
			NonceTTLSeconds:    300,
			SignatureScheme:    config.SignatureSchemePersonal,
			RecoveryTTLHours:   24,
			TypedDataChainID:   97,
			TypedDataDomainVer: "1",
		},
		chainCfg: &config.ChainConfig{
			RPCAddrs:                   []string{"http://127.0.0.1:8545"},
			ChainID:                    97,
			ContractAddress:            testContract.Hex(),
			ConfirmTimeoutSeconds:      5,
			ConfirmPollIntervalSeconds: 1,
			RPCTimeoutSeconds:          5,
		},
	}
	serverCfg := &config.ServerConfig{
		PublicURL:     "http://api.verivid.local/",
		FrontendURL:   "http://verivid.local",
		MaxUploadSize: 1 << 20,
	}
	storageCfg := &config.StorageConfig{StorageType: config.StorageTypeLocal, PresignTTLMinute: 30}
	pipelineCfg := &config.PipelineConfig{WorkerNum: 1, PollIntervalMillis: 10, MaxAttempts: 3, BaseBackoffSeconds: 1, MaxBackoffSeconds: 5, StageTimeoutSeconds: 5}

	f.sessions = NewSessionIssuer(f.authCfg.JWTSecret, f.authCfg.SessionTTL())
	f.sessions.now = clock.Now
	f.auth = NewAuthService(f.dao, f.sessions, f.authCfg)
	f.auth.now = clock.Now

	pipeline := orchestrator.NewOrchestrator(f.queue, pipelineCfg, f.notifier)
	f.fingerprints = NewFingerprintRegistry(f.dao, f.storage)
	f.uploads = NewUploadService(f.dao, f.fingerprints, f.storage, pipeline, serverCfg, storageCfg)
	f.proofs = NewProofService(f.dao, f.registry, f.content, f.chainCfg)
	f.proofs.now = clock.Now
	f.proofs.sleep = func(context.Context, time.Duration) error { return context.DeadlineExceeded }

	lru, err := cache.NewLocalCache(16)
	require.NoError(t, err)
	f.verify = NewVerifyService(f.dao, f.registry, lru)
	f.recovery = NewRecoveryService(f.dao, f.notifier, f.authCfg, serverCfg)
	f.recovery.now = clock.Now
	f.profiles = NewProfileService(f.dao)
	return f
}

// uploadValidated runs upload-init, content upload and upload-complete for content.
func (f *fixture) uploadValidated(t *testing.T, owner string, content []byte) *db.Asset {
	ctx := context.Background()
	res, err := f.uploads.InitUpload(ctx, owner, &InitUploadRequest{
		Filename: "clip.mp4",
		MimeType: "video/mp4",
		Size:     int64(len(content)),
		Sha256:   util.GenerateChecksum(content),
	})
	require.NoError(t, err)
	require.False(t, res.IsDuplicate)
	_, err = f.uploads.UploadContent(ctx, owner, res.AssetID, bytes.NewReader(content))
	require.NoError(t, err)
	asset, err := f.uploads.CompleteUpload(ctx, owner, res.AssetID, "")
	require.NoError(t, err)
	require.Equal(t, db.HashValidated, asset.HashStatus)
	return asset
}

// registerOnChain simulates the owner mining registerProof for a prepared asset.
func (f *fixture) registerOnChain(t *testing.T, prepared *PreparedTx, signer *testWallet) common.Hash {
	txHash := crypto.Keccak256Hash([]byte("tx-" + prepared.AssetID))
	f.registry.RegisterProof(txHash, common.HexToHash(prepared.ProofHash), signer.Common(), prepared.MetadataUri)
	return txHash
}
