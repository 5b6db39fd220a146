package raster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"elevation-api/internal/geo"
	"elevation-api/internal/logger"
)

// SummaryFile：数据集目录下的瓦片摘要文件名
const SummaryFile = "summary.json"

// 文档注释：瓦片摘要条目
// 背景：记录数据集内每个瓦片文件及其范围，供路由层在不打开数据集的情况下构建覆盖区域。
// 文件格式：[{"file": "N45E006.hgt", "coords": [minLat, maxLat, minLng, maxLng]}, ...]
type TileSummary struct {
	File   string     `json:"file"`
	Coords [4]float64 `json:"coords"`
}

// Rect：条目范围
func (t TileSummary) Rect() geo.Rect {
	return geo.Rect{MinLat: t.Coords[0], MaxLat: t.Coords[1], MinLng: t.Coords[2], MaxLng: t.Coords[3]}
}

// SummaryPath：dir/summary.json
func SummaryPath(dir string) string { return filepath.Join(dir, SummaryFile) }

// HasSummary：摘要文件是否存在
func HasSummary(dir string) bool {
	_, err := os.Stat(SummaryPath(dir))
	return err == nil
}

// ReadSummary：读取并校验摘要；坐标非法或宽高为零的条目使整个摘要无效
func ReadSummary(dir string) ([]TileSummary, error) {
	b, err := os.ReadFile(SummaryPath(dir))
	if err != nil {
		return nil, err
	}
	var out []TileSummary
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("raster: %s: %w", SummaryPath(dir), err)
	}
	for _, t := range out {
		if t.File == "" {
			return nil, fmt.Errorf("raster: %s: entry without file", SummaryPath(dir))
		}
		r := t.Rect()
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("raster: %s: %s: %w", SummaryPath(dir), t.File, err)
		}
		// 瓦片采样按宽高换算行列，零面积矩形无法定位
		if r.MinLat == r.MaxLat || r.MinLng == r.MaxLng {
			return nil, fmt.Errorf("raster: %s: %s: degenerate tile rect", SummaryPath(dir), t.File)
		}
	}
	return out, nil
}

// WriteSummary：先写临时文件再改名，避免读者看到半份摘要
func WriteSummary(dir string, entries []TileSummary) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := SummaryPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, SummaryPath(dir))
}

// 文档注释：扫描目录生成摘要
// 背景：瓦片范围由文件名推导（SRTM 命名以西南角为准，覆盖 1°×1°），不读取像元数据。
// 约束：仅识别 .hgt/.hgt.zip/.hgt.zst；按文件名排序保证摘要顺序稳定；无可识别瓦片时返回错误。
func BuildSummary(dir string) ([]TileSummary, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []TileSummary
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		lat, lng, ok := ParseTileName(name)
		if !ok {
			continue
		}
		out = append(out, TileSummary{
			File:   name,
			Coords: [4]float64{float64(lat), float64(lat + 1), float64(lng), float64(lng + 1)},
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("raster: no tiles in %s", dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

// 文档注释：确保摘要存在
// 背景：已有摘要且未要求强制重建时直接复用；否则扫描生成并落盘。
// 返回：摘要条目；目录不可读或无瓦片时返回错误。
func EnsureSummary(dir string, rebuild bool) ([]TileSummary, error) {
	l := logger.L()
	if !rebuild && HasSummary(dir) {
		l.Info("summary_reuse", "dir", dir)
		return ReadSummary(dir)
	}
	l.Info("summary_build_begin", "dir", dir, "forced", rebuild)
	entries, err := BuildSummary(dir)
	if err != nil {
		return nil, err
	}
	if err := WriteSummary(dir, entries); err != nil {
		return nil, err
	}
	l.Info("summary_build_done", "dir", dir, "tiles", len(entries))
	return entries, nil
}

// Rects：条目矩形，保持摘要顺序
func Rects(entries []TileSummary) []geo.Rect {
	out := make([]geo.Rect, 0, len(entries))
	for _, t := range entries {
		out = append(out, t.Rect())
	}
	return out
}

var tileSuffixes = []string{".hgt.zip", ".hgt.zst", ".hgt"}

// tileKind：返回瓦片后缀；不可识别返回空
func tileKind(name string) string {
	lower := strings.ToLower(name)
	for _, s := range tileSuffixes {
		if strings.HasSuffix(lower, s) {
			return s
		}
	}
	return ""
}

// 文档注释：解析 SRTM 瓦片名
// 背景：形如 N45E006 / S12W077，数字为西南角整数度；南纬与西经取负。
// 返回：西南角纬度、经度与是否可识别。
func ParseTileName(name string) (int, int, bool) {
	kind := tileKind(name)
	if kind == "" {
		return 0, 0, false
	}
	stem := strings.ToUpper(name[:len(name)-len(kind)])
	if len(stem) != 7 {
		return 0, 0, false
	}
	ns, ew := stem[0], stem[3]
	lat, err := strconv.Atoi(stem[1:3])
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.Atoi(stem[4:7])
	if err != nil {
		return 0, 0, false
	}
	switch ns {
	case 'N':
	case 'S':
		lat = -lat
	default:
		return 0, 0, false
	}
	switch ew {
	case 'E':
	case 'W':
		lng = -lng
	default:
		return 0, 0, false
	}
	if lat < -90 || lat >= 90 || lng < -180 || lng >= 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// TileName：西南角坐标对应的文件主名（不含后缀）
func TileName(lat, lng int) string {
	ns, ew := 'N', 'E'
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	if lng < 0 {
		ew, lng = 'W', -lng
	}
	return fmt.Sprintf("%c%02d%c%03d", ns, lat, ew, lng)
}
