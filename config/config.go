package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bnb-chain/verivid-hub/cache"
)

type Config struct {
	LogConfig      LogConfig      `json:"log_config"`
	DBConfig       DBConfig       `json:"db_config"`
	ServerConfig   ServerConfig   `json:"server_config"`
	AuthConfig     AuthConfig     `json:"auth_config"`
	ChainConfig    ChainConfig    `json:"chain_config"`
	StorageConfig  StorageConfig  `json:"storage_config"`
	IPFSConfig     IPFSConfig     `json:"ipfs_config"`
	PipelineConfig PipelineConfig `json:"pipeline_config"`
	NotifyConfig   NotifyConfig   `json:"notify_config"`
	CacheConfig    CacheConfig    `json:"cache_config"`
	MetricsConfig  MetricsConfig  `json:"metrics_config"`
}

type ServerConfig struct {
	ListenAddr          string   `json:"listen_addr"`
	PublicURL           string   `json:"public_url"`   // PublicURL is used to build upload urls handed to clients
	FrontendURL         string   `json:"frontend_url"` // FrontendURL is used in recovery links
	RateLimitPerSec     float64  `json:"rate_limit_per_sec"`
	RateLimitBurst      int      `json:"rate_limit_burst"`
	MaxUploadSize       int64    `json:"max_upload_size"`
	CookieSecure        bool     `json:"cookie_secure"`
	DisableEmbedWorkers bool     `json:"disable_embed_workers"` // run the api without the embedded pipeline workers
	TrustedProxies      []string `json:"trusted_proxies"`       // ips or cidrs whose X-Forwarded-For header is honored
}

func (c *ServerConfig) Validate() {
	for _, proxy := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err == nil {
			continue
		}
		if net.ParseIP(proxy) == nil {
			panic(fmt.Sprintf("invalid trusted proxy %s", proxy))
		}
	}
}

type AuthConfig struct {
	JWTSecret          string `json:"jwt_secret"`
	SessionTTLHours    int    `json:"session_ttl_hours"`
	NonceTTLSeconds    int    `json:"nonce_ttl_seconds"`
	SignatureScheme    string `json:"signature_scheme"` // personal_sign or eip712
	RecoveryTTLHours   int    `json:"recovery_ttl_hours"`
	RecoveryPerMinute  int    `json:"recovery_per_minute"`
	TypedDataChainID   int64  `json:"typed_data_chain_id"`
	TypedDataDomainVer string `json:"typed_data_domain_version"`
}

func (c *AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *AuthConfig) NonceTTL() time.Duration {
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

func (c *AuthConfig) RecoveryTTL() time.Duration {
	return time.Duration(c.RecoveryTTLHours) * time.Hour
}

type ChainConfig struct {
	RPCAddrs                   []string `json:"rpc_addrs"`
	ChainID                    int64    `json:"chain_id"`
	ContractAddress            string   `json:"contract_address"`
	ConfirmTimeoutSeconds      int      `json:"confirm_timeout_seconds"`
	ConfirmPollIntervalSeconds int      `json:"confirm_poll_interval_seconds"`
	RPCTimeoutSeconds          int      `json:"rpc_timeout_seconds"`
}

func (c *ChainConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

func (c *ChainConfig) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollIntervalSeconds) * time.Second
}

func (c *ChainConfig) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutSeconds) * time.Second
}

// ChainName returns the CAIP-2 style identifier recorded on proofs.
func (c *ChainConfig) ChainName() string {
	return fmt.Sprintf("eip155:%d", c.ChainID)
}

func (c *ChainConfig) Validate() {
	if len(c.RPCAddrs) == 0 {
		panic("chain rpc_addrs should not be empty")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		panic(fmt.Sprintf("invalid contract address %s", c.ContractAddress))
	}
	if c.ChainID <= 0 {
		panic("chain_id should be larger than 0")
	}
}

type StorageConfig struct {
	StorageType string `json:"storage_type"` // local, s3 or greenfield

	LocalDir string `json:"local_dir"`

	S3Bucket         string `json:"s3_bucket"`
	S3Region         string `json:"s3_region"`
	S3Endpoint       string `json:"s3_endpoint"`
	PresignTTLMinute int    `json:"presign_ttl_minute"`

	BundleServiceEndpoint string `json:"bundle_service_endpoint"`
	BucketName            string `json:"bucket_name"`
	PrivateKey            string `json:"private_key"`
}

func (c *StorageConfig) Validate() {
	switch c.StorageType {
	case StorageTypeLocal:
		if c.LocalDir == "" {
			panic("local_dir should not be empty if use local storage")
		}
	case StorageTypeS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			panic("s3_bucket and s3_region should not be empty if use s3 storage")
		}
	case StorageTypeGreenfield:
		if c.BundleServiceEndpoint == "" || c.BucketName == "" || c.PrivateKey == "" {
			panic("bundle_service_endpoint, bucket_name and private_key are required for greenfield storage")
		}
	default:
		panic(fmt.Sprintf("unexpected storage type %s", c.StorageType))
	}
}

type IPFSConfig struct {
	PinningEndpoint string `json:"pinning_endpoint"` // PinningEndpoint is a Pinata compatible pinning API
	JWT             string `json:"jwt"`
	GatewayURL      string `json:"gateway_url"`
}

type PipelineConfig struct {
	WorkerNum           int    `json:"worker_num"`
	PollIntervalMillis  int    `json:"poll_interval_millis"`
	MaxAttempts         int    `json:"max_attempts"`
	BaseBackoffSeconds  int    `json:"base_backoff_seconds"`
	MaxBackoffSeconds   int    `json:"max_backoff_seconds"`
	StageTimeoutSeconds int    `json:"stage_timeout_seconds"`
	LeaseSeconds        int    `json:"lease_seconds"`
	FFmpegPath          string `json:"ffmpeg_path"`
	FFprobePath         string `json:"ffprobe_path"`
	TempDir             string `json:"temp_dir"`
	AlertEmail          string `json:"alert_email"` // AlertEmail receives permanently failed job alerts, optional
}

// Validate requires the lease to outlive the stage timeout, otherwise a running stage is redelivered.
func (c *PipelineConfig) Validate() {
	if c.LeaseSeconds <= c.StageTimeoutSeconds {
		panic(fmt.Sprintf("lease_seconds %d should be larger than stage_timeout_seconds %d", c.LeaseSeconds, c.StageTimeoutSeconds))
	}
}

func (c *PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c *PipelineConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffSeconds) * time.Second
}

func (c *PipelineConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

func (c *PipelineConfig) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

func (c *PipelineConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

type NotifyConfig struct {
	NotifyType   string `json:"notify_type"` // log or smtp
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	From         string `json:"from"`
}

type CacheConfig struct {
	CacheType string `json:"cache_type"` // local or none
	CacheSize uint64 `json:"cache_size"`
}

func (c *CacheConfig) GetCacheSize() uint64 {
	if c.CacheSize != 0 {
		return c.CacheSize
	}
	return cache.DefaultCacheSize
}

type MetricsConfig struct {
	Enable      bool   `json:"enable"`
	HttpAddress string `json:"http_address"`
}

type DBConfig struct {
	Dialect       string `json:"dialect"`
	KeyType       string `json:"key_type"`
	AWSRegion     string `json:"aws_region"`
	AWSSecretName string `json:"aws_secret_name"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Url           string `json:"url"`
	MaxIdleConns  int    `json:"max_idle_conns"`
	MaxOpenConns  int    `json:"max_open_conns"`
}

func (cfg *DBConfig) Validate() {
	if cfg.Dialect != DBDialectMysql && cfg.Dialect != DBDialectSqlite3 {
		panic(fmt.Sprintf("only %s and %s supported", DBDialectMysql, DBDialectSqlite3))
	}
	if cfg.Dialect == DBDialectMysql && (cfg.Username == "" || cfg.Url == "") {
		panic("db config is not correct, missing username and/or url")
	}
	if cfg.MaxIdleConns == 0 || cfg.MaxOpenConns == 0 {
		panic("db connections is not correct")
	}
}

type LogConfig struct {
	Level                        string `json:"level"`
	Filename                     string `json:"filename"`
	MaxFileSizeInMB              int    `json:"max_file_size_in_mb"`
	MaxBackupsOfLogFiles         int    `json:"max_backups_of_log_files"`
	MaxAgeToRetainLogFilesInDays int    `json:"max_age_to_retain_log_files_in_days"`
	UseConsoleLogger             bool   `json:"use_console_logger"`
	UseFileLogger                bool   `json:"use_file_logger"`
	Compress                     bool   `json:"compress"`
}

func (cfg *LogConfig) Validate() {
	if cfg.UseFileLogger {
		if cfg.Filename == "" {
			panic("filename should not be empty if use file logger")
		}
		if cfg.MaxFileSizeInMB <= 0 {
			panic("max_file_size_in_mb should be larger than 0 if use file logger")
		}
		if cfg.MaxBackupsOfLogFiles <= 0 {
			panic("max_backups_off_log_files should be larger than 0 if use file logger")
		}
	}
}

// SetDefaults fills zero values with the service defaults.
func (c *Config) SetDefaults() {
	if c.ServerConfig.ListenAddr == "" {
		c.ServerConfig.ListenAddr = DefaultListenAddr
	}
	if c.ServerConfig.RateLimitPerSec == 0 {
		c.ServerConfig.RateLimitPerSec = DefaultRateLimitPerSec
	}
	if c.ServerConfig.RateLimitBurst == 0 {
		c.ServerConfig.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.ServerConfig.MaxUploadSize == 0 {
		c.ServerConfig.MaxUploadSize = DefaultMaxUploadSize
	}

	if c.AuthConfig.SessionTTLHours == 0 {
		c.AuthConfig.SessionTTLHours = DefaultSessionTTLHours
	}
	if c.AuthConfig.NonceTTLSeconds == 0 {
		c.AuthConfig.NonceTTLSeconds = DefaultNonceTTLSeconds
	}
	if c.AuthConfig.SignatureScheme == "" {
		c.AuthConfig.SignatureScheme = SignatureSchemePersonal
	}
	if c.AuthConfig.RecoveryTTLHours == 0 {
		c.AuthConfig.RecoveryTTLHours = DefaultRecoveryTTLHours
	}
	if c.AuthConfig.RecoveryPerMinute == 0 {
		c.AuthConfig.RecoveryPerMinute = DefaultRecoveryPerMinute
	}
	if c.AuthConfig.TypedDataDomainVer == "" {
		c.AuthConfig.TypedDataDomainVer = "1"
	}
	if c.AuthConfig.TypedDataChainID == 0 {
		c.AuthConfig.TypedDataChainID = c.ChainConfig.ChainID
	}

	if c.ChainConfig.ConfirmTimeoutSeconds == 0 {
		c.ChainConfig.ConfirmTimeoutSeconds = DefaultConfirmTimeoutSeconds
	}
	if c.ChainConfig.ConfirmPollIntervalSeconds == 0 {
		c.ChainConfig.ConfirmPollIntervalSeconds = DefaultConfirmPollIntervalSeconds
	}
	if c.ChainConfig.RPCTimeoutSeconds == 0 {
		c.ChainConfig.RPCTimeoutSeconds = DefaultRPCTimeoutSeconds
	}

	if c.StorageConfig.PresignTTLMinute == 0 {
		c.StorageConfig.PresignTTLMinute = DefaultPresignTTLMinute
	}
	if c.IPFSConfig.GatewayURL == "" {
		c.IPFSConfig.GatewayURL = DefaultIPFSGateway
	}

	p := &c.PipelineConfig
	if p.WorkerNum == 0 {
		p.WorkerNum = DefaultWorkerNum
	}
	if p.PollIntervalMillis == 0 {
		p.PollIntervalMillis = DefaultPollIntervalMillis
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoffSeconds == 0 {
		p.BaseBackoffSeconds = DefaultBaseBackoffSeconds
	}
	if p.MaxBackoffSeconds == 0 {
		p.MaxBackoffSeconds = DefaultMaxBackoffSeconds
	}
	if p.StageTimeoutSeconds == 0 {
		p.StageTimeoutSeconds = DefaultStageTimeoutSeconds
	}
	if p.LeaseSeconds == 0 {
		p.LeaseSeconds = DefaultLeaseSeconds
	}
	if p.FFmpegPath == "" {
		p.FFmpegPath = "ffmpeg"
	}
	if p.FFprobePath == "" {
		p.FFprobePath = "ffprobe"
	}
	if p.TempDir == "" {
		p.TempDir = os.TempDir()
	}

	if c.NotifyConfig.NotifyType == "" {
		c.NotifyConfig.NotifyType = NotifyTypeLog
	}
	if c.CacheConfig.CacheType == "" {
		c.CacheConfig.CacheType = CacheTypeLocal
	}
	if c.MetricsConfig.HttpAddress == "" {
		c.MetricsConfig.HttpAddress = DefaultMetricsAddress
	}
}

func (c *Config) Validate() {
	c.LogConfig.Validate()
	c.DBConfig.Validate()
	c.ChainConfig.Validate()
	c.StorageConfig.Validate()
	c.ServerConfig.Validate()
	c.PipelineConfig.Validate()
	if c.AuthConfig.JWTSecret == "" {
		panic("jwt_secret should not be empty")
	}
	if c.AuthConfig.SignatureScheme != SignatureSchemePersonal && c.AuthConfig.SignatureScheme != SignatureSchemeEIP712 {
		panic(fmt.Sprintf("unexpected signature scheme %s", c.AuthConfig.SignatureScheme))
	}
	if c.IPFSConfig.PinningEndpoint == "" {
		panic("ipfs pinning_endpoint should not be empty")
	}
	if c.NotifyConfig.NotifyType == NotifyTypeSMTP && (c.NotifyConfig.SMTPHost == "" || c.NotifyConfig.From == "") {
		panic("smtp_host and from are required if use smtp notifier")
	}
}

func ParseConfigFromJson(content string) *Config {
	var config Config
	if err := json.Unmarshal([]byte(content), &config); err != nil {
		panic(err)
	}
	config.SetDefaults()
	return &config
}

func ParseConfigFromFile(filePath string) *Config {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		panic(err)
	}

	var config Config
	if err := json.Unmarshal(bz, &config); err != nil {
		panic(err)
	}
	config.SetDefaults()
	return &config
}
