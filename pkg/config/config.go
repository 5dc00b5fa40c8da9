package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Proof storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Rewards    RewardsConfig
	Payment    PaymentConfig
	Reconciler ReconcilerConfig
	Proofs     ProofStorageConfig
	Locks      LockConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RewardsConfig tunes reward computation inputs.
type RewardsConfig struct {
	Attendance     float64
	PolicySeed     string
	PolicyCacheTTL time.Duration
}

// PaymentConfig points at the external transfer service.
type PaymentConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	AdminAddress    string
	TreasuryAddress string
}

// ReconcilerConfig drives the background settlement of unknown payments.
type ReconcilerConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
	Retries  int
}

// ProofStorageConfig selects where proof uploads are kept.
type ProofStorageConfig struct {
	Driver           string
	Dir              string
	S3Bucket         string
	S3Prefix         string
	S3Region         string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
}

// LockConfig bounds how long a per-record lock may be held.
type LockConfig struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			var pathErr interface{ Timeout() bool }
			if !errors.As(err, &pathErr) && !strings.Contains(err.Error(), "no such file") {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Rewards = RewardsConfig{
		Attendance:     v.GetFloat64("REWARD_ATTENDANCE"),
		PolicySeed:     strings.TrimSpace(v.GetString("REWARD_POLICY_SEED")),
		PolicyCacheTTL: parseDuration(v.GetString("POLICY_CACHE_TTL"), time.Minute),
	}

	cfg.Payment = PaymentConfig{
		BaseURL:         v.GetString("PAYMENT_BASE_URL"),
		APIKey:          v.GetString("PAYMENT_API_KEY"),
		Timeout:         parseDuration(v.GetString("PAYMENT_TIMEOUT"), 15*time.Second),
		AdminAddress:    v.GetString("PAYMENT_ADMIN_ADDRESS"),
		TreasuryAddress: v.GetString("PAYMENT_TREASURY_ADDRESS"),
	}

	cfg.Reconciler = ReconcilerConfig{
		Enabled:  v.GetBool("ENABLE_RECONCILER"),
		Interval: parseDuration(v.GetString("RECONCILE_INTERVAL"), 5*time.Minute),
		Workers:  v.GetInt("RECONCILE_WORKERS"),
		Retries:  v.GetInt("RECONCILE_RETRIES"),
	}

	maxProofSize := v.GetInt64("PROOF_MAX_FILE_SIZE")
	if maxProofSize <= 0 {
		maxProofSize = 10 * 1024 * 1024
	}
	cfg.Proofs = ProofStorageConfig{
		Driver:           strings.ToLower(v.GetString("PROOF_STORAGE_DRIVER")),
		Dir:              v.GetString("PROOF_STORAGE_DIR"),
		S3Bucket:         v.GetString("PROOF_S3_BUCKET"),
		S3Prefix:         v.GetString("PROOF_S3_PREFIX"),
		S3Region:         v.GetString("PROOF_S3_REGION"),
		MaxFileSizeBytes: maxProofSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("PROOF_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("PROOF_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("PROOF_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Locks = LockConfig{
		TTL: parseDuration(v.GetString("PAIR_LOCK_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_rewards")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REWARD_ATTENDANCE", 100)
	v.SetDefault("REWARD_POLICY_SEED", "")
	v.SetDefault("POLICY_CACHE_TTL", "1m")

	v.SetDefault("PAYMENT_BASE_URL", "http://localhost:7545")
	v.SetDefault("PAYMENT_API_KEY", "")
	v.SetDefault("PAYMENT_TIMEOUT", "15s")
	v.SetDefault("PAYMENT_ADMIN_ADDRESS", "")
	v.SetDefault("PAYMENT_TREASURY_ADDRESS", "")

	v.SetDefault("ENABLE_RECONCILER", true)
	v.SetDefault("RECONCILE_INTERVAL", "5m")
	v.SetDefault("RECONCILE_WORKERS", 2)
	v.SetDefault("RECONCILE_RETRIES", 3)

	v.SetDefault("PROOF_STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("PROOF_STORAGE_DIR", "./proofs")
	v.SetDefault("PROOF_S3_BUCKET", "")
	v.SetDefault("PROOF_S3_PREFIX", "proofs")
	v.SetDefault("PROOF_S3_REGION", "us-east-1")
	v.SetDefault("PROOF_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("PROOF_ALLOWED_MIME_TYPES", "image/jpeg,image/png,application/pdf")
	v.SetDefault("PROOF_SIGNED_URL_SECRET", "dev_proofs_secret")
	v.SetDefault("PROOF_SIGNED_URL_TTL", "30m")

	v.SetDefault("PAIR_LOCK_TTL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
