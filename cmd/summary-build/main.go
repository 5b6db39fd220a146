package main

import (
	"os"

	"elevation-api/internal/config"
	"elevation-api/internal/logger"
	"elevation-api/internal/raster"
)

// 文档注释：重建数据集摘要
// 背景：按 DATA_CONFIG 中的全部数据集目录（或命令行给出的目录）扫描瓦片并重写 summary.json；
// 服务启动时只在摘要缺失或 ALWAYS_REBUILD_SUMMARY=true 时才会生成，新增瓦片后用本命令刷新。
// 约束：任一目录失败时继续处理其余目录，最终以非零状态退出。
func main() {
	config.LoadDotenv()
	l := logger.Setup()
	dirs := os.Args[1:]
	if len(dirs) == 0 {
		cfg := config.FromEnv()
		dc, err := config.ReadDataConfig(cfg.DataConfig)
		if err != nil {
			l.Error("data_config_error", "path", cfg.DataConfig, "err", err)
			os.Exit(1)
		}
		dirs = dc.Paths()
	}
	failed := 0
	for _, dir := range dirs {
		entries, err := raster.EnsureSummary(dir, true)
		if err != nil {
			l.Error("summary_build_error", "dir", dir, "err", err)
			failed++
			continue
		}
		l.Info("summary_written", "dir", dir, "tiles", len(entries))
	}
	if failed > 0 {
		l.Error("summary_build_failed", "failed", failed, "total", len(dirs))
		os.Exit(1)
	}
}
