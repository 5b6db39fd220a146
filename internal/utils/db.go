// 包 utils：外部依赖连接工具（PostgreSQL、Redis、自签名证书），统一环境变量读取
package utils

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"strconv"
	"time"

	"elevation-api/internal/logger"

	_ "github.com/lib/pq"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// BuildPostgresDSNFromEnv：PG_DSN 优先，否则由 PG_HOST/PG_PORT/PG_USER/PG_PASSWORD/PG_DB/PG_SSLMODE 拼接
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     envOr("PG_HOST", "localhost") + ":" + envOr("PG_PORT", "5432"),
		Path:     "/" + envOr("PG_DB", "elevapi"),
		RawQuery: "sslmode=" + url.QueryEscape(envOr("PG_SSLMODE", "disable")),
	}
	user := envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// 文档注释：按环境变量打开统计库
// 背景：统计为可选功能，连接池规模远小于查询路径；打开后立即探活，失败由调用方决定是否降级。
// 约束：PG_MAX_OPEN_CONNS/PG_MAX_IDLE_CONNS 解析失败时使用默认值。
func OpenPostgresFromEnv(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(envInt("PG_MAX_OPEN_CONNS", 10))
	db.SetMaxIdleConns(envInt("PG_MAX_IDLE_CONNS", 5))
	db.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Info("db_open_ok", "host", envOr("PG_HOST", "localhost"), "db", envOr("PG_DB", "elevapi"))
	return db, nil
}
