package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// IndexThreshold：矩形数量超过该值时为区域建立 R-Tree，否则线性扫描
const IndexThreshold = 16

// 文档注释：覆盖区域（矩形集合）
// 背景：替代多边形并集；对轴对齐矩形而言“点在并集内”等价于“点在任一矩形内”，无需构造合并后的多边形。
// 约束：构建后只读，可被任意数量的协程并发读取；R-Tree 仅用于候选过滤，命中前必须回到 Rect.Contains 复核，
// 保证与线性扫描结果逐位一致（包括共享边界上的闭区间语义）。
type Region struct {
	rects []Rect
	tree  *rtree.RTreeG[int]
}

// NewRegion：按给定顺序复制矩形并按需建立索引
func NewRegion(rects []Rect) *Region {
	g := &Region{rects: append([]Rect(nil), rects...)}
	if len(g.rects) > IndexThreshold {
		g.tree = &rtree.RTreeG[int]{}
		for i, r := range g.rects {
			g.tree.Insert([2]float64{r.MinLng, r.MinLat}, [2]float64{r.MaxLng, r.MaxLat}, i)
		}
	}
	return g
}

// Contains：点是否落在任一成员矩形内
func (g *Region) Contains(lat, lng float64) bool {
	if g == nil || math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	if g.tree == nil {
		return g.scan(lat, lng)
	}
	found := false
	pt := [2]float64{lng, lat}
	g.tree.Search(pt, pt, func(_, _ [2]float64, i int) bool {
		if g.rects[i].Contains(lat, lng) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (g *Region) scan(lat, lng float64) bool {
	for _, r := range g.rects {
		if r.Contains(lat, lng) {
			return true
		}
	}
	return false
}

// Len：成员矩形数量
func (g *Region) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rects)
}

// Indexed：是否启用了 R-Tree
func (g *Region) Indexed() bool { return g != nil && g.tree != nil }

// Rects：成员矩形副本（保持原始顺序）
func (g *Region) Rects() []Rect {
	if g == nil {
		return nil
	}
	return append([]Rect(nil), g.rects...)
}

// Bound：全部成员的外包框；空区域返回 false
func (g *Region) Bound() (orb.Bound, bool) {
	if g.Len() == 0 {
		return orb.Bound{}, false
	}
	b := g.rects[0].Bound()
	for _, r := range g.rects[1:] {
		b = b.Union(r.Bound())
	}
	return b, true
}
