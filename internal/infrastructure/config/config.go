package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
// 加载顺序：默认值 < config.yaml < 环境变量（BOOKSTORE_ 前缀）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MQ       MQConfig       `mapstructure:"mq"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Cart     CartConfig     `mapstructure:"cart"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies 信任的反向代理，决定ClientIP取值（回调白名单依赖它）
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN 生成MySQL连接字符串
// loc需要URL编码（Asia/Shanghai → Asia%2FShanghai）
func (d DatabaseConfig) DSN() string {
	loc := url.QueryEscape(d.Loc)
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, loc)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	RefreshTokenExpire time.Duration `mapstructure:"refresh_token_expire"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// PaymentConfig 支付服务商
type PaymentConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	CallbackURL   string        `mapstructure:"callback_url"`
	Currency      string        `mapstructure:"currency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	// WebhookAllowList 回调来源白名单，单个IP或CIDR
	WebhookAllowList []string `mapstructure:"webhook_allow_list"`
	// BreakerFailures 连续失败多少次熔断
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
}

// AllowedPrefixes 把白名单解析成网段，单个IP按/32或/128处理
func (p PaymentConfig) AllowedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(p.WebhookAllowList))
	for _, entry := range p.WebhookAllowList {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("无效的回调白名单网段 %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("无效的回调白名单IP %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// FeeBand 手续费档位：金额不超过UpTo时收取Fee
type FeeBand struct {
	UpTo int64 `mapstructure:"up_to"`
	Fee  int64 `mapstructure:"fee"`
}

// PayoutConfig 分账
type PayoutConfig struct {
	WalletID    string        `mapstructure:"wallet_id"`
	FeeBands    []FeeBand     `mapstructure:"fee_bands"`
	TopFee      int64         `mapstructure:"top_fee"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// StorageConfig 电子书文件所在的私有S3桶
type StorageConfig struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"` // 非空时走兼容S3的自建服务（MinIO）
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// PathStyle MinIO需要路径风格的URL
	PathStyle bool          `mapstructure:"path_style"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type MQConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange_type"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// CartConfig 游客购物车
type CartConfig struct {
	GuestTTL     time.Duration `mapstructure:"guest_ttl"`
	MergeLockTTL time.Duration `mapstructure:"merge_lock_ttl"`
}

// Load 加载配置文件
// 1. 默认加载config/config.yaml
// 2. BOOKSTORE_ENV=prod 时加载config.prod.yaml
// 3. 环境变量覆盖（BOOKSTORE_DATABASE_PASSWORD → database.password）
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOKSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	name := "config"
	if env := v.GetString("env"); env != "" {
		name = "config." + env
	}
	v.SetConfigName(name)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// LoadFile 从指定文件加载，payout-runner和测试使用
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("BOOKSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 4*time.Minute)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	// 只有viper已知的key才能被环境变量覆盖，敏感项登记空默认值
	for _, key := range []string{
		"database.host", "database.user", "database.password", "database.dbname",
		"redis.host", "redis.password",
		"jwt.secret",
		"payment.base_url", "payment.secret_key", "payment.webhook_secret",
		"storage.bucket", "storage.endpoint", "storage.access_key", "storage.secret_key",
		"mq.url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("database.port", 3306)
	v.SetDefault("redis.port", 6379)

	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.loc", "Local")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("jwt.access_token_expire", 2*time.Hour)
	v.SetDefault("jwt.refresh_token_expire", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("payment.currency", "NGN")
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("payment.max_retries", 2)
	v.SetDefault("payment.breaker_failures", 5)
	v.SetDefault("payment.breaker_timeout", 30*time.Second)
	v.SetDefault("payment.checkout_timeout", 30*time.Second)

	v.SetDefault("payout.wallet_id", "default")
	v.SetDefault("payout.top_fee", 50)
	v.SetDefault("payout.lock_ttl", 2*time.Minute)
	v.SetDefault("payout.max_attempts", 3)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.url_expiry", 5*time.Minute)

	v.SetDefault("mq.exchange", "ebookstore.events")
	v.SetDefault("mq.exchange_type", "topic")

	v.SetDefault("tracing.service_name", "ebookstore-api")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("cart.guest_ttl", 30*24*time.Hour)
	v.SetDefault("cart.merge_lock_ttl", 10*time.Second)
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret不能为空")
	}
	if cfg.JWT.Secret == "your-secret-key-change-in-production" && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	if cfg.Payment.WebhookSecret == "" {
		return fmt.Errorf("payment.webhook_secret不能为空")
	}
	if _, err := cfg.Payment.AllowedPrefixes(); err != nil {
		return err
	}

	var prev int64 = -1
	for _, band := range cfg.Payout.FeeBands {
		if band.UpTo <= prev {
			return fmt.Errorf("payout.fee_bands必须按up_to严格递增")
		}
		prev = band.UpTo
	}

	// 结账与立即分账都在请求内同步完成
	if cfg.Server.WriteTimeout < cfg.Payment.CheckoutTimeout {
		return fmt.Errorf("server.write_timeout(%s)不能小于payment.checkout_timeout(%s)",
			cfg.Server.WriteTimeout, cfg.Payment.CheckoutTimeout)
	}
	if budget := cfg.PayoutRunBudget(); cfg.Server.WriteTimeout < budget {
		return fmt.Errorf("server.write_timeout(%s)不能小于单次分账最长耗时(%s)", cfg.Server.WriteTimeout, budget)
	}

	if cfg.Storage.URLExpiry <= 0 || cfg.Storage.URLExpiry > 7*24*time.Hour {
		return fmt.Errorf("无效的下载链接有效期: %s", cfg.Storage.URLExpiry)
	}

	return nil
}

// 与provider客户端、分账用例的退避上限一致
const (
	providerMaxBackoff = 2 * time.Second
	payoutMaxBackoff   = 5 * time.Second
)

// CallBudget 一次服务商调用（含重试）的最长耗时
func (p PaymentConfig) CallBudget() time.Duration {
	retries := time.Duration(max(p.MaxRetries, 0))
	return (retries+1)*p.Timeout + retries*providerMaxBackoff
}

// PayoutRunBudget 单次分账最长耗时
// 首次读余额，每次尝试一次提现，第二次起提现前退避并重新读余额
func (c *Config) PayoutRunBudget() time.Duration {
	call := c.Payment.CallBudget()
	attempts := time.Duration(max(c.Payout.MaxAttempts, 1))
	return call + attempts*call + (attempts-1)*(payoutMaxBackoff+call)
}
