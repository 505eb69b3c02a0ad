package config

import (
	"errors"
	"fmt"
	"strings"

	"web3-fee-distributor/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	NetworkMainnet = "mainnet"
	NetworkDevnet  = "devnet"
)

// Config 定义整个配置的结构
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Solana        SolanaConfig        `mapstructure:"solana"`
	Helius        HeliusConfig        `mapstructure:"helius"`
	Raydium       RaydiumConfig       `mapstructure:"raydium"`
	Distribution  DistributionConfig  `mapstructure:"distribution"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SolanaConfig 链上 RPC 与签名账户
type SolanaConfig struct {
	RpcURL            string  `mapstructure:"rpc_url"`
	PrivateKey        string  `mapstructure:"private_key"`
	Network           string  `mapstructure:"network"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

func (c SolanaConfig) Mainnet() bool {
	return c.Network == NetworkMainnet
}

type HeliusConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	RateLimit int    `mapstructure:"rate_limit"` // 每分钟请求次数
	Timeout   int    `mapstructure:"timeout"`    // 秒
}

type RaydiumConfig struct {
	APIURL           string `mapstructure:"api_url"`
	TradeURL         string `mapstructure:"trade_url"`
	ComputeUnitPrice uint64 `mapstructure:"compute_unit_price"`
	RateLimit        int    `mapstructure:"rate_limit"`
	Timeout          int    `mapstructure:"timeout"`
}

// RewardConfig 奖励代币，percent 之和不能超过 100
type RewardConfig struct {
	Mint      string  `mapstructure:"mint"`
	Percent   float64 `mapstructure:"percent"`
	ProgramID string  `mapstructure:"program_id"`
	Name      string  `mapstructure:"name"`
}

// DistributionConfig 分发任务配置，指针字段为空时使用默认值
type DistributionConfig struct {
	Mint      string         `mapstructure:"mint"`
	ProgramID string         `mapstructure:"program_id"`
	Rewards   []RewardConfig `mapstructure:"rewards"`

	IntervalMinutes          *float64 `mapstructure:"interval_minutes"`
	WithdrawAndSwap          *bool    `mapstructure:"withdraw_and_swap"`
	SwapFeePercent           *float64 `mapstructure:"swap_fee_percent"`
	MinGetSol                *float64 `mapstructure:"min_get_sol"`
	SwapRewardPercent        *float64 `mapstructure:"swap_reward_percent"`
	MinWithdrawPercent       *float64 `mapstructure:"min_withdraw_percent"`
	MaxWithdrawPercent       *float64 `mapstructure:"max_withdraw_percent"`
	GapFactor                *float64 `mapstructure:"gap_factor"`
	WithdrawBatchSize        *int     `mapstructure:"withdraw_batch_size"`
	WithdrawAndSwapBatchSize *int     `mapstructure:"withdraw_and_swap_batch_size"`
	InstructionCeiling       *int     `mapstructure:"instruction_ceiling"`
	SlippageBps              *int     `mapstructure:"slippage_bps"`
	MaxHolderRetries         *int     `mapstructure:"max_holder_retries"`

	MinHold              *float64 `mapstructure:"min_hold"`
	MaxHold              *float64 `mapstructure:"max_hold"`
	RequireRewardAccount *bool    `mapstructure:"require_reward_account"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      string `mapstructure:"brokers"`
	TopicPayouts string `mapstructure:"topic_payouts"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ElasticsearchConfig struct {
	Addresses        []string `mapstructure:"addresses"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	PayoutsIndexName string   `mapstructure:"payouts_index_name"`
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

var vp = viper.New()

// 环境变量可覆盖的键，后面的名字兼容旧的 .env
var envBindings = map[string][]string{
	"solana.rpc_url":     {"FEE_SOLANA_RPC_URL", "RPC_URL"},
	"solana.private_key": {"FEE_SOLANA_PRIVATE_KEY", "PRIVATE_KEY"},
	"solana.network":     {"FEE_SOLANA_NETWORK", "NETWORK"},
	"helius.api_key":     {"FEE_HELIUS_API_KEY", "HELIUS_API_KEY"},
	"distribution.mint":  {"FEE_DISTRIBUTION_MINT", "MINT"},
	"postgres.dsn":       {"FEE_POSTGRES_DSN"},
	"redis.address":      {"FEE_REDIS_ADDRESS"},
	"kafka.brokers":      {"FEE_KAFKA_BROKERS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("solana.network", NetworkDevnet)
	v.SetDefault("solana.requests_per_second", 10)
	v.SetDefault("helius.rate_limit", 600)
	v.SetDefault("helius.timeout", 30)
	v.SetDefault("raydium.compute_unit_price", 100000)
	v.SetDefault("raydium.rate_limit", 300)
	v.SetDefault("raydium.timeout", 15)
	v.SetDefault("kafka.topic_payouts", "fee_distribution_payouts")
	v.SetDefault("elasticsearch.payouts_index_name", "fee_distribution_payouts")
}

// Load 读取配置文件和环境变量，path 为空时在 ./config/ 下查找 config.worker.yaml
func Load(path string) (Config, error) {
	var config Config

	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config.worker")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config/")
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return config, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err := mapstructure.Decode(v.AllSettings(), &config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	config.Solana.Network = strings.ToLower(strings.TrimSpace(config.Solana.Network))

	if err := config.Validate(); err != nil {
		return config, err
	}
	vp = v
	return config, nil
}

// Validate 检查启动必需的配置
func (c Config) Validate() error {
	var missing []string
	if c.Solana.RpcURL == "" {
		missing = append(missing, "solana.rpc_url")
	}
	if c.Solana.PrivateKey == "" {
		missing = append(missing, "solana.private_key")
	}
	if c.Helius.APIKey == "" {
		missing = append(missing, "helius.api_key")
	}
	if c.Distribution.Mint == "" {
		missing = append(missing, "distribution.mint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Solana.Network != NetworkMainnet && c.Solana.Network != NetworkDevnet {
		return fmt.Errorf("solana.network must be %q or %q, got %q", NetworkMainnet, NetworkDevnet, c.Solana.Network)
	}

	var total float64
	for _, r := range c.Distribution.Rewards {
		if r.Mint == "" {
			return fmt.Errorf("distribution.rewards: reward %q has no mint", r.Name)
		}
		total += r.Percent
	}
	if total > 100 {
		return fmt.Errorf("distribution.rewards: percent sum %.4f exceeds 100", total)
	}
	return nil
}

// WatchConfig 配置文件变更时只热更新日志级别
func WatchConfig(config *Config) {
	v := vp
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := mapstructure.Decode(v.AllSettings(), &next); err != nil {
			return
		}
		config.Log = next.Log
		logger.SetLogLevel(config.Log.Level)
	})
	v.WatchConfig()
}
