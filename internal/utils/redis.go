package utils

import (
	"context"
	"time"

	"elevation-api/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：从环境变量打开 Redis 客户端并探活
// 约束：REDIS_DB 解析失败时回退到 0；探活失败关闭客户端并返回错误
func OpenRedisFromEnv(ctx context.Context) (*redis.Client, error) {
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := envInt("REDIS_DB", 0)
	rc := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    envOr("REDIS_PASS", ""),
		DB:          db,
		DialTimeout: 2 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	logger.L().Info("redis_ping_ok", "addr", addr, "db", db)
	return rc, nil
}
