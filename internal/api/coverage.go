package api

import (
	"elevation-api/internal/registry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：覆盖范围导出
// 背景：把注册表中的分组与分片覆盖区域导出为 GeoJSON，便于在地图上核对路由配置；坐标顺序为 [lng, lat]。
// 约束：分组输出其包围框，分片输出瓦片矩形组成的 MultiPolygon；order 为路由时的遍历序号。
func coverageCollection(reg *registry.Registry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	order := 0
	for _, g := range reg.Groups() {
		if b, ok := g.Coverage.Bound(); ok {
			f := geojson.NewFeature(b.ToPolygon())
			f.Properties["kind"] = "group"
			f.Properties["group"] = g.Key
			f.Properties["rects"] = g.Coverage.Len()
			fc.Append(f)
		}
		for _, s := range g.Shards {
			rects := s.Coverage.Rects()
			mp := make(orb.MultiPolygon, 0, len(rects))
			for _, r := range rects {
				mp = append(mp, r.Bound().ToPolygon())
			}
			f := geojson.NewFeature(mp)
			f.Properties["kind"] = "shard"
			f.Properties["group"] = g.Key
			f.Properties["shard"] = s.Path
			f.Properties["projection"] = s.Projection
			f.Properties["order"] = order
			f.Properties["tiles"] = len(rects)
			fc.Append(f)
			order++
		}
	}
	return fc
}
