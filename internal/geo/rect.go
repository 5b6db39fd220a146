// 包 geo：经纬度矩形与覆盖区域，承载路由层的点包含判定；不做投影转换
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidRect：矩形边界非法（NaN/Inf 或最小值大于最大值）
var ErrInvalidRect = errors.New("invalid rect")

// Point：查询坐标（WGS84 经纬度，单位度）
type Point struct {
	Lat float64
	Lng float64
}

// 文档注释：瓦片包围矩形
// 背景：来自数据集 summary.json 的单个瓦片范围，四条边均为闭区间；共享边上的点同时属于相邻两个矩形。
// 约束：字段顺序与 summary 中 coords 数组一致：[minLat, maxLat, minLng, maxLng]。
type Rect struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains：闭区间包含判定；NaN 坐标恒为 false
func (r Rect) Contains(lat, lng float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lng >= r.MinLng && lng <= r.MaxLng
}

// Validate：检查边界是否为有限数且有序
func (r Rect) Validate() error {
	for _, v := range [...]float64{r.MinLat, r.MaxLat, r.MinLng, r.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidRect, r)
		}
	}
	if r.MinLat > r.MaxLat || r.MinLng > r.MaxLng {
		return fmt.Errorf("%w: %v", ErrInvalidRect, r)
	}
	return nil
}

// Bound：转换为 orb 包围盒（X 为经度，Y 为纬度）
func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.MinLng, r.MinLat},
		Max: orb.Point{r.MaxLng, r.MaxLat},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("lat[%g,%g] lng[%g,%g]", r.MinLat, r.MaxLat, r.MinLng, r.MaxLng)
}
