// 包 store：统计计数的 PostgreSQL 读写
package store

import (
	"context"
	"database/sql"

	"elevation-api/internal/logger"
)

// Store：持有连接池；db 为空时所有操作为空操作，便于统计关闭时直接传 nil
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Enabled：是否连接了数据库
func (s *Store) Enabled() bool { return s != nil && s.db != nil }

// Close：关闭数据库连接
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.Close()
}

// 文档注释：记录一次已派发的批量查询
// 背景：累计与当日各记一次请求与 points 个点，newVisitor 为真时访客数加一；在同一事务内更新两张表。
// 约束：解析失败的请求不计数；写入失败只记日志，不影响查询响应。
func (s *Store) IncrStats(ctx context.Context, points int, newVisitor bool) error {
	if !s.Enabled() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	v := 0
	if newVisitor {
		v = 1
	}
	if _, err := tx.ExecContext(ctx, "UPDATE _elev_stats_total SET total_requests=total_requests+1, total_points=total_points+$1, total_visitors=total_visitors+$2 WHERE id=1", points, v); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO _elev_stats_daily(day, requests, points, visitors) VALUES(current_date, 1, $1, $2) ON CONFLICT (day) DO UPDATE SET requests=_elev_stats_daily.requests+1, points=_elev_stats_daily.points+EXCLUDED.points, visitors=_elev_stats_daily.visitors+EXCLUDED.visitors", points, v); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("stats_incr", "points", points, "new_visitor", newVisitor)
	return nil
}

// Totals：累计与当日的请求数、点数、访客数
type Totals struct {
	Requests      int64 `json:"requests"`
	Points        int64 `json:"points"`
	Visitors      int64 `json:"visitors"`
	TodayRequests int64 `json:"today_requests"`
	TodayPoints   int64 `json:"today_points"`
	TodayVisitors int64 `json:"today_visitors"`
}

// GetTotals：当日无记录时当日计数为 0
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if !s.Enabled() {
		return &t, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT total_requests, total_points, total_visitors FROM _elev_stats_total WHERE id=1")
	if err := row.Scan(&t.Requests, &t.Points, &t.Visitors); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	row = s.db.QueryRowContext(ctx, "SELECT requests, points, visitors FROM _elev_stats_daily WHERE day=current_date")
	if err := row.Scan(&t.TodayRequests, &t.TodayPoints, &t.TodayVisitors); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	logger.L().Debug("stats_totals", "requests", t.Requests, "today", t.TodayRequests)
	return &t, nil
}
