package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App            AppSettings            `mapstructure:"app"`
	Postgres       PostgresSettings       `mapstructure:"postgres"`
	Redis          RedisSettings          `mapstructure:"redis"`
	Kafka          KafkaSettings          `mapstructure:"kafka"`
	JWT            JWTSettings            `mapstructure:"jwt"`
	Telemetry      TelemetrySettings      `mapstructure:"telemetry"`
	RateLimit      RateLimitSettings      `mapstructure:"rate_limit"`
	Auth           AuthSettings           `mapstructure:"auth"`
	Chain          ChainSettings          `mapstructure:"chain"`
	Reserve        ReserveSettings        `mapstructure:"reserve"`
	Reconciliation ReconciliationSettings `mapstructure:"reconciliation"`
	Rewards        RewardSettings         `mapstructure:"rewards"`
	Social         SocialSettings         `mapstructure:"social"`
	Admin          AdminSettings          `mapstructure:"admin"`
	FailurePolicy  map[string]string      `mapstructure:"failure_policy"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and key prefixes
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitClass is the fixed-window budget of one action class
type RateLimitClass struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitSettings configures fixed-window budgets per action class
type RateLimitSettings struct {
	General            RateLimitClass `mapstructure:"general"`
	Auth               RateLimitClass `mapstructure:"auth"`
	SocialVerification RateLimitClass `mapstructure:"social_verification"`
	Reward             RateLimitClass `mapstructure:"reward"`
	Admin              RateLimitClass `mapstructure:"admin"`
}

type JWTSettings struct {
	KeyDirectory string        `mapstructure:"key_directory"`
	Issuer       string        `mapstructure:"issuer"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// AuthSettings configures wallet challenges
type AuthSettings struct {
	AppName      string        `mapstructure:"app_name"`
	ReplayWindow time.Duration `mapstructure:"replay_window"`
}

// ChainSettings configures the JSON-RPC endpoint and the token contract holding the reserve
type ChainSettings struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	TokenContract  string        `mapstructure:"token_contract"`
	ReserveAddress string        `mapstructure:"reserve_address"`
	TokenDecimals  int32         `mapstructure:"token_decimals"`
	RPCTimeout     time.Duration `mapstructure:"rpc_timeout"`
	MaxRetries     uint          `mapstructure:"max_retries"`
}

type ReserveSettings struct {
	BalanceTTL time.Duration `mapstructure:"balance_ttl"`
}

type ReconciliationSettings struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	Lookback     time.Duration `mapstructure:"lookback"`
	BatchSize    int           `mapstructure:"batch_size"`
	PendingGrace time.Duration `mapstructure:"pending_grace"`
}

type RewardSettings struct {
	DailyRitualAmount int64         `mapstructure:"daily_ritual_amount"`
	ClaimPeriod       time.Duration `mapstructure:"claim_period"`
}

type SocialSettings struct {
	VerifierURL     string        `mapstructure:"verifier_url"`
	VerifierTimeout time.Duration `mapstructure:"verifier_timeout"`
	MinTrustScore   int           `mapstructure:"min_trust_score"`
	RewardAmount    int64         `mapstructure:"reward_amount"`
}

// AdminSettings configures the admin allow-list and suspicious IP detection
type AdminSettings struct {
	Wallets             []string      `mapstructure:"wallets"`
	SuspiciousThreshold int64         `mapstructure:"suspicious_threshold"`
	SuspiciousWindow    time.Duration `mapstructure:"suspicious_window"`
	FlagTTL             time.Duration `mapstructure:"flag_ttl"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("KETHER")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.key_directory",
		"jwt.issuer",
		"jwt.session_ttl",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.general.limit",
		"rate_limit.general.window",
		"rate_limit.auth.limit",
		"rate_limit.auth.window",
		"rate_limit.social_verification.limit",
		"rate_limit.social_verification.window",
		"rate_limit.reward.limit",
		"rate_limit.reward.window",
		"rate_limit.admin.limit",
		"rate_limit.admin.window",
		"auth.app_name",
		"auth.replay_window",
		"chain.rpc_url",
		"chain.token_contract",
		"chain.reserve_address",
		"chain.token_decimals",
		"chain.rpc_timeout",
		"chain.max_retries",
		"reserve.balance_ttl",
		"reconciliation.enabled",
		"reconciliation.interval",
		"reconciliation.lookback",
		"reconciliation.batch_size",
		"reconciliation.pending_grace",
		"rewards.daily_ritual_amount",
		"rewards.claim_period",
		"social.verifier_url",
		"social.verifier_timeout",
		"social.min_trust_score",
		"social.reward_amount",
		"admin.wallets",
		"admin.suspicious_threshold",
		"admin.suspicious_window",
		"admin.flag_ttl",
		"failure_policy.rate_limit",
		"failure_policy.suspicious_activity",
		"failure_policy.risk_signal",
		"failure_policy.session_revocation",
		"failure_policy.event_publish",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.App.AllowedOrigins = splitList(cfg.App.AllowedOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Admin.Wallets = splitList(cfg.Admin.Wallets)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kether-core")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "kether")
	v.SetDefault("postgres.password", "kether_password")
	v.SetDefault("postgres.database", "kether")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "kether")

	// Empty broker list selects the stub publisher
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "kether")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "kether-core")
	v.SetDefault("jwt.session_ttl", "24h")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "kether-core")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.general.limit", 100)
	v.SetDefault("rate_limit.general.window", "1m")
	v.SetDefault("rate_limit.auth.limit", 20)
	v.SetDefault("rate_limit.auth.window", "1m")
	v.SetDefault("rate_limit.social_verification.limit", 5)
	v.SetDefault("rate_limit.social_verification.window", "1h")
	v.SetDefault("rate_limit.reward.limit", 30)
	v.SetDefault("rate_limit.reward.window", "1m")
	v.SetDefault("rate_limit.admin.limit", 10)
	v.SetDefault("rate_limit.admin.window", "1m")

	v.SetDefault("auth.app_name", "Kether")
	v.SetDefault("auth.replay_window", "5m")

	v.SetDefault("chain.rpc_url", "http://localhost:8545")
	v.SetDefault("chain.token_contract", "")
	v.SetDefault("chain.reserve_address", "")
	v.SetDefault("chain.token_decimals", 18)
	v.SetDefault("chain.rpc_timeout", "5s")
	v.SetDefault("chain.max_retries", 3)

	v.SetDefault("reserve.balance_ttl", "5s")

	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.interval", "10m")
	v.SetDefault("reconciliation.lookback", "24h")
	v.SetDefault("reconciliation.batch_size", 200)
	v.SetDefault("reconciliation.pending_grace", "2m")

	v.SetDefault("rewards.daily_ritual_amount", 50)
	v.SetDefault("rewards.claim_period", "24h")

	v.SetDefault("social.verifier_url", "")
	v.SetDefault("social.verifier_timeout", "5s")
	v.SetDefault("social.min_trust_score", 40)
	v.SetDefault("social.reward_amount", 100)

	v.SetDefault("admin.wallets", []string{})
	v.SetDefault("admin.suspicious_threshold", 5)
	v.SetDefault("admin.suspicious_window", "1h")
	v.SetDefault("admin.flag_ttl", "24h")

	v.SetDefault("failure_policy.rate_limit", "open")
	v.SetDefault("failure_policy.suspicious_activity", "open")
	v.SetDefault("failure_policy.risk_signal", "open")
	v.SetDefault("failure_policy.session_revocation", "open")
	v.SetDefault("failure_policy.event_publish", "open")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "KETHER_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
