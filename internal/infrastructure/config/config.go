package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	ProductSearch ServiceConfig      `mapstructure:"product_search"`
	MealAPI       ServiceConfig      `mapstructure:"meal_api"`
	ShoppingAPI   ServiceConfig      `mapstructure:"shopping_api"`
	CalendarAPI   ServiceConfig      `mapstructure:"calendar_api"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Autocomplete  AutocompleteConfig `mapstructure:"autocomplete"`
	Session       SessionConfig      `mapstructure:"session"`
	Store         StoreConfig        `mapstructure:"store"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	DedupWindow   time.Duration      `mapstructure:"dedup_window"`
	LogLevel      string             `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// ServiceConfig 外部服務連線設定
type ServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// Enabled 是否設定了外部服務位址
func (s ServiceConfig) Enabled() bool {
	return strings.TrimSpace(s.BaseURL) != ""
}

// CacheConfig 搜尋結果快取設定
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	SearchTTL     time.Duration `mapstructure:"search_ttl"`
	SuggestionTTL time.Duration `mapstructure:"suggestion_ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

// AutocompleteConfig 自動完成設定
type AutocompleteConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	SuggestLimit   int           `mapstructure:"suggest_limit"`
	SearchLimit    int           `mapstructure:"search_limit"`
	TrendingLimit  int           `mapstructure:"trending_limit"`
	MaxSuggestions int           `mapstructure:"max_suggestions"`
	MaxBrands      int           `mapstructure:"max_brands"`
	MaxProducts    int           `mapstructure:"max_products"`
}

// SessionConfig 編輯工作階段設定
type SessionConfig struct {
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// StoreConfig 本地餐點儲存設定，未設定 meal_api 時使用
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時直接使用環境變數
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	_ = v.BindEnv("product_search.base_url", "PRODUCT_SEARCH_URL")
	_ = v.BindEnv("meal_api.base_url", "MEAL_API_URL")
	_ = v.BindEnv("meal_api.api_key", "MEAL_API_KEY")
	_ = v.BindEnv("shopping_api.base_url", "SHOPPING_API_URL")
	_ = v.BindEnv("shopping_api.api_key", "SHOPPING_API_KEY")
	_ = v.BindEnv("calendar_api.base_url", "CALENDAR_API_URL")
	_ = v.BindEnv("cache.backend", "CACHE_BACKEND")
	_ = v.BindEnv("cache.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("store.dsn", "MEAL_STORE_DSN")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "meal-pipeline")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// 外部服務
	v.SetDefault("product_search.base_url", "https://services.wihy.ai/api/products")
	v.SetDefault("product_search.timeout", "10s")
	v.SetDefault("product_search.retry_count", 1)
	v.SetDefault("meal_api.timeout", "15s")
	v.SetDefault("shopping_api.timeout", "20s")
	v.SetDefault("calendar_api.timeout", "10s")

	// 快取設定
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.search_ttl", "30m")
	v.SetDefault("cache.suggestion_ttl", "2m")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "meal-pipeline:search:")

	// 自動完成設定
	v.SetDefault("autocomplete.debounce", "150ms")
	v.SetDefault("autocomplete.min_query_length", 2)
	v.SetDefault("autocomplete.suggest_limit", 8)
	v.SetDefault("autocomplete.search_limit", 20)
	v.SetDefault("autocomplete.trending_limit", 10)
	v.SetDefault("autocomplete.max_suggestions", 8)
	v.SetDefault("autocomplete.max_brands", 4)
	v.SetDefault("autocomplete.max_products", 5)

	// 工作階段設定
	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.cleanup_interval", "10m")

	// 本地儲存
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:meals.db?cache=shared")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}
	if config.Cache.SearchTTL <= 0 {
		return fmt.Errorf("invalid cache search ttl")
	}
	if config.Cache.MaxSize <= 0 {
		return fmt.Errorf("invalid cache max size")
	}

	if config.Autocomplete.Debounce <= 0 {
		return fmt.Errorf("invalid autocomplete debounce")
	}
	if config.Autocomplete.MinQueryLength <= 0 {
		return fmt.Errorf("invalid autocomplete min query length")
	}

	if !config.ProductSearch.Enabled() {
		return fmt.Errorf("product search base url is required")
	}

	if config.Session.IdleTTL <= 0 || config.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session settings")
	}

	return nil
}
