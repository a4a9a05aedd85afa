package config

const (
	FlagConfigPath         = "config-path"
	FlagConfigType         = "config-type"
	FlagConfigAwsRegion    = "aws-region"
	FlagConfigAwsSecretKey = "aws-secret-key"
	FlagConfigDbPass       = "db-pass"
	FlagConfigJWTSecret    = "jwt-secret"

	AWSConfig   = "aws"
	LocalConfig = "local"

	KeyTypeLocalPrivateKey = "local_private_key"
	KeyTypeAWSPrivateKey   = "aws_private_key"

	DBDialectMysql   = "mysql"
	DBDialectSqlite3 = "sqlite3"

	StorageTypeLocal      = "local"
	StorageTypeS3         = "s3"
	StorageTypeGreenfield = "greenfield"

	CacheTypeLocal = "local"
	CacheTypeNone  = "none"

	NotifyTypeLog  = "log"
	NotifyTypeSMTP = "smtp"

	SignatureSchemePersonal = "personal_sign"
	SignatureSchemeEIP712   = "eip712"

	ConfigType           = "CONFIG_TYPE"
	EnvVarConfigFilePath = "CONFIG_FILE_PATH"
	EnvVarDBUserPass     = "DB_PASSWORD"
	EnvVarJWTSecret      = "JWT_SECRET"
	EnvVarPrivateKey     = "PRIVATE_KEY"

	DefaultListenAddr      = "0.0.0.0:3001"
	DefaultRateLimitPerSec = 20
	DefaultRateLimitBurst  = 40
	DefaultMaxUploadSize   = 5 * 1024 * 1024 * 1024

	DefaultSessionTTLHours   = 7 * 24
	DefaultNonceTTLSeconds   = 5 * 60
	DefaultRecoveryTTLHours  = 24
	DefaultRecoveryPerMinute = 3

	DefaultConfirmTimeoutSeconds      = 60
	DefaultConfirmPollIntervalSeconds = 3
	DefaultRPCTimeoutSeconds          = 20

	DefaultPresignTTLMinute = 30
	DefaultIPFSGateway      = "https://ipfs.io"

	DefaultWorkerNum           = 4
	DefaultPollIntervalMillis  = 500
	DefaultMaxAttempts         = 5
	DefaultBaseBackoffSeconds  = 2
	DefaultMaxBackoffSeconds   = 300
	DefaultStageTimeoutSeconds = 30 * 60
	DefaultLeaseSeconds        = 45 * 60

	DefaultMetricsAddress = "0.0.0.0:9090"
)
