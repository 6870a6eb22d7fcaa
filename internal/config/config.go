package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ExtractionConfig OMOP 抽取服务（外部 LLM 抽取协作方）配置
type ExtractionConfig struct {
	BaseURL       string // 抽取服务地址
	APIKey        string // 认证密钥
	Stream        string // 抽取任务 Stream 名称
	ConsumerGroup string // 消费者组
	ConsumerName  string // 消费者名称
	BatchSize     int64  // 单次读取消息数
	MaxRetries    int    // 单条任务最大重试次数
}

// LedgerConfig 链上存证服务（distributed-ledger 协作方）配置
type LedgerConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int // 提交超时（超时结果记为 UNKNOWN，不可当作成功）
}

// PaymentConfig 支付网关协作方配置
type PaymentConfig struct {
	BaseURL string
	APIKey  string
}

// RoyaltyConfig 分账引擎配置
type RoyaltyConfig struct {
	PlatformWallet  string // 平台金库钱包
	PhysicianWallet string // 默认主治医师钱包
}

// Config autocase 核心服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    RedisConfig
	Log      struct {
		Level  string
		Format string
	}

	// 去标识化盐值（进程级配置：启动时读取一次，之后不可变）
	DeidSalt string
	// FHIR webhook 共享密钥（为空则不校验签名）
	WebhookSecret string
	// B2B RWE 查询接口 JWT 密钥
	RweJWTSecret string

	Extraction ExtractionConfig
	Ledger     LedgerConfig
	Payment    PaymentConfig
	Royalty    RoyaltyConfig
}

func Load() *Config {
	// 本地开发支持 .env（不存在则忽略）
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "autocase")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.DeidSalt = getEnv("MRN_SALT", "autocase-salt")
	cfg.WebhookSecret = getEnv("FHIR_WEBHOOK_SECRET", "")
	cfg.RweJWTSecret = getEnv("RWE_JWT_SECRET", "")

	// 抽取服务配置
	cfg.Extraction.BaseURL = getEnv("EXTRACTION_BASE_URL", "http://localhost:8090")
	cfg.Extraction.APIKey = getEnv("EXTRACTION_API_KEY", "")
	cfg.Extraction.Stream = getEnv("EXTRACTION_STREAM", "autocase:extraction:jobs")
	cfg.Extraction.ConsumerGroup = getEnv("EXTRACTION_CONSUMER_GROUP", "omop-extractors")
	cfg.Extraction.ConsumerName = getEnv("EXTRACTION_CONSUMER_NAME", "extractor-1")
	cfg.Extraction.BatchSize = int64(parseInt(getEnv("EXTRACTION_BATCH_SIZE", "10"), 10))
	cfg.Extraction.MaxRetries = parseInt(getEnv("EXTRACTION_MAX_RETRIES", "3"), 3)

	// 链上存证服务配置
	cfg.Ledger.BaseURL = getEnv("LEDGER_BASE_URL", "http://localhost:8091")
	cfg.Ledger.APIKey = getEnv("LEDGER_API_KEY", "")
	cfg.Ledger.TimeoutSeconds = parseInt(getEnv("LEDGER_TIMEOUT_SECONDS", "15"), 15)

	// 支付网关配置
	cfg.Payment.BaseURL = getEnv("PAYMENT_BASE_URL", "http://localhost:8092")
	cfg.Payment.APIKey = getEnv("PAYMENT_API_KEY", "")

	// 分账配置
	cfg.Royalty.PlatformWallet = getEnv("PLATFORM_WALLET", "")
	cfg.Royalty.PhysicianWallet = getEnv("PHYSICIAN_DEFAULT_WALLET", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
