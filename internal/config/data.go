package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"elevation-api/internal/geo"
	"elevation-api/internal/logger"
	"elevation-api/internal/raster"
	"elevation-api/internal/registry"
)

// DatasetEntry：单个数据集目录与投影标识
type DatasetEntry struct {
	Path       string `json:"path"`
	Projection string `json:"projection"`
}

// GroupEntry：分组的数据集列表；Extent 可选，格式与 summary 的 coords 一致
type GroupEntry struct {
	Extent   [][4]float64   `json:"extent,omitempty"`
	Datasets []DatasetEntry `json:"datasets"`
}

// 文档注释：数据集配置
// 背景：JSON 对象，键为分组名；值为数据集数组，或 {"extent": [...], "datasets": [...]}。
// 示例：{"srtm": [{"path": "data/srtm", "projection": "EPSG:4326"}]}
// 约束：相对路径以配置文件所在目录为基准；同一分组内保持配置顺序。
type DataConfig map[string]GroupEntry

// UnmarshalJSON：兼容数组简写
func (g *GroupEntry) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		return json.Unmarshal(t, &g.Datasets)
	}
	type plain GroupEntry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*g = GroupEntry(p)
	return nil
}

// ReadDataConfig：读取并解析数据集配置
func ReadDataConfig(path string) (DataConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dc DataConfig
	if err := json.Unmarshal(b, &dc); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if len(dc) == 0 {
		return nil, fmt.Errorf("config: %s: no dataset groups", path)
	}
	base := filepath.Dir(path)
	for key, g := range dc {
		if len(g.Datasets) == 0 {
			return nil, fmt.Errorf("config: group %q has no datasets", key)
		}
		for i := range g.Datasets {
			p := g.Datasets[i].Path
			if p == "" {
				return nil, fmt.Errorf("config: group %q: dataset without path", key)
			}
			if !filepath.IsAbs(p) {
				g.Datasets[i].Path = filepath.Join(base, p)
			}
		}
	}
	return dc, nil
}

// Projections：数据集路径到投影标识，供打开器透传
func (dc DataConfig) Projections() map[string]string {
	out := make(map[string]string)
	for _, g := range dc {
		for _, d := range g.Datasets {
			out[d.Path] = d.Projection
		}
	}
	return out
}

// Paths：全部数据集目录
func (dc DataConfig) Paths() []string {
	var out []string
	for _, g := range dc {
		for _, d := range g.Datasets {
			out = append(out, d.Path)
		}
	}
	return out
}

// 文档注释：生成注册表构建输入
// 背景：为每个数据集确保 summary.json 存在（缺失或 rebuild 为真时扫描生成），再把瓦片矩形交给注册表。
// 异常：任一数据集摘要不可用即返回错误，服务不以残缺配置启动。
func (dc DataConfig) GroupConfigs(rebuild bool) ([]registry.GroupConfig, error) {
	out := make([]registry.GroupConfig, 0, len(dc))
	for key, g := range dc {
		gc := registry.GroupConfig{Key: key}
		for _, c := range g.Extent {
			gc.Extent = append(gc.Extent, geo.Rect{MinLat: c[0], MaxLat: c[1], MinLng: c[2], MaxLng: c[3]})
		}
		for _, d := range g.Datasets {
			entries, err := raster.EnsureSummary(d.Path, rebuild)
			if err != nil {
				return nil, fmt.Errorf("config: dataset %s: %w", d.Path, err)
			}
			gc.Shards = append(gc.Shards, registry.ShardConfig{
				Path:       d.Path,
				Projection: d.Projection,
				Rects:      raster.Rects(entries),
			})
		}
		logger.L().Info("data_group_ready", "group", key, "datasets", len(g.Datasets))
		out = append(out, gc)
	}
	return out, nil
}
