// 包 logger：进程级 slog 日志器；级别与格式由 LOG_LEVEL / LOG_FORMAT 控制，避免各模块各自初始化
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

// ParseLevel：将 debug/info/warn/error 映射为 slog 级别，未知值回退 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New：按格式构建日志器；format 为 json 时输出 JSON，否则为文本
func New(w io.Writer, lvl slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// 文档注释：初始化默认日志器
// 背景：集中化日志配置，按环境统一调整级别与格式；同时设置为 slog 默认日志器。
// 约束：输出固定为标准错误；不管理文件句柄或外部聚合通道。
func Setup() *slog.Logger {
	l := New(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"))
	Set(l)
	return l
}

// Set：替换默认日志器（测试可注入丢弃输出的日志器）
func Set(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

// L：获取默认日志器；未初始化时回退到 Setup
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return Setup()
}
