// 包 migrate：统计库表结构
package migrate

import (
	"context"
	"database/sql"

	"elevation-api/internal/logger"
)

// 背景：首次运行自动创建统计表；只记录计数，不保存任何查询结果
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突
var statements = []string{
	`CREATE TABLE IF NOT EXISTS _elev_stats_total (
		id INT PRIMARY KEY,
		total_requests BIGINT NOT NULL DEFAULT 0,
		total_points BIGINT NOT NULL DEFAULT 0,
		total_visitors BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS _elev_stats_daily (
		day DATE PRIMARY KEY,
		requests BIGINT NOT NULL DEFAULT 0,
		points BIGINT NOT NULL DEFAULT 0,
		visitors BIGINT NOT NULL DEFAULT 0
	)`,
	`INSERT INTO _elev_stats_total(id, total_requests, total_points, total_visitors)
	 VALUES(1, 0, 0, 0)
	 ON CONFLICT (id) DO NOTHING`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
