// 包 config：进程配置与数据集配置读取；所有开关均为环境变量并带默认值
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"elevation-api/internal/elevation"
	"elevation-api/internal/pool"

	"github.com/joho/godotenv"
)

// Config：服务进程配置
type Config struct {
	Addr                 string
	Endpoint             string
	DataConfig           string
	OpenInterfaces       int
	AlwaysRebuildSummary bool
	MaxLocations         int
	LookupWorkers        int

	RateLimitEnabled bool
	RateLimitQPS     int
	RateLimitBurst   int
	RateLimitRedis   bool
	RateLimitWindow  int
	RateLimitPerWin  int

	RedisEnabled bool
	StatsEnabled bool

	TLSEnabled  bool
	TLSCertPath string
	TLSKeyPath  string
}

// LoadDotenv：按顺序加载 .env 与 data/env/.env；文件缺失不是错误，已存在的环境变量不被覆盖
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：从环境变量读取配置
// 背景：与数据配置分离；布尔开关接受 true/1/yes，数字解析失败或非正时回退默认值。
// 约束：URL_ENDPOINT 规范化为以 / 开头且不以 / 结尾。
func FromEnv() Config {
	c := Config{
		Addr:                 str("ADDR", ":8080"),
		Endpoint:             normalizeEndpoint(str("URL_ENDPOINT", "/api/v1/lookup")),
		DataConfig:           str("DATA_CONFIG", "./data-config.json"),
		OpenInterfaces:       num("OPEN_INTERFACES", pool.DefaultCapacity),
		AlwaysRebuildSummary: flag("ALWAYS_REBUILD_SUMMARY", false),
		MaxLocations:         num("MAX_LOCATIONS", elevation.DefaultMaxPoints),
		LookupWorkers:        num("LOOKUP_WORKERS", elevation.DefaultWorkers),
		RateLimitEnabled:     flag("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:         num("RATE_LIMIT_QPS", 200),
		RateLimitRedis:       flag("RATE_LIMIT_REDIS", false),
		RateLimitWindow:      num("RATE_LIMIT_WINDOW_SEC", 1),
		RateLimitPerWin:      num("RATE_LIMIT_PER_WINDOW", 0),
		RedisEnabled:         flag("REDIS_ENABLED", false),
		StatsEnabled:         flag("STATS_ENABLED", false),
		TLSEnabled:           flag("TLS_ENABLE", false),
		TLSCertPath:          str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:           str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	c.RateLimitBurst = num("RATE_LIMIT_BURST", c.RateLimitQPS)
	// 共享限流依赖 redis
	if c.RateLimitRedis {
		c.RedisEnabled = true
	}
	return c
}

// BasePath：接口路径的父路径，用于挂载 metrics/coverage/stats；/api/v1/lookup → /api/v1
func (c Config) BasePath() string {
	i := strings.LastIndex(c.Endpoint, "/")
	if i <= 0 {
		return ""
	}
	return c.Endpoint[:i]
}

func normalizeEndpoint(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return "/api/v1/lookup"
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func flag(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return def
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
