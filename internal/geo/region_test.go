package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectContainsInclusive(t *testing.T) {
	r := Rect{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}

	assert.True(t, r.Contains(5, 5))
	assert.True(t, r.Contains(0, 0))
	assert.True(t, r.Contains(10, 10))
	assert.True(t, r.Contains(0, 10))
	assert.True(t, r.Contains(10, 0))
	assert.False(t, r.Contains(10.0000001, 5))
	assert.False(t, r.Contains(5, -0.0000001))
	assert.False(t, r.Contains(math.NaN(), 5))
}

func TestRectValidate(t *testing.T) {
	require.NoError(t, Rect{MinLat: 1, MaxLat: 1, MinLng: 2, MaxLng: 2}.Validate())
	assert.ErrorIs(t, Rect{MinLat: 2, MaxLat: 1}.Validate(), ErrInvalidRect)
	assert.ErrorIs(t, Rect{MinLng: 0, MaxLng: math.Inf(1)}.Validate(), ErrInvalidRect)
	assert.ErrorIs(t, Rect{MinLat: math.NaN()}.Validate(), ErrInvalidRect)
}

func TestRegionSharedEdge(t *testing.T) {
	g := NewRegion([]Rect{
		{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1},
		{MinLat: 0, MaxLat: 1, MinLng: 1, MaxLng: 2},
	})
	assert.False(t, g.Indexed())
	assert.True(t, g.Contains(0.5, 1))
	assert.True(t, g.Contains(1, 2))
	assert.False(t, g.Contains(1.5, 1.5))
}

func TestRegionEmpty(t *testing.T) {
	g := NewRegion(nil)
	assert.Equal(t, 0, g.Len())
	assert.False(t, g.Contains(0, 0))
	_, ok := g.Bound()
	assert.False(t, ok)

	var nilRegion *Region
	assert.False(t, nilRegion.Contains(0, 0))
}

// 索引路径与线性扫描必须逐点一致
func TestRegionIndexMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var rects []Rect
	for i := 0; i < 200; i++ {
		lat := float64(rng.Intn(160) - 80)
		lng := float64(rng.Intn(340) - 170)
		rects = append(rects, Rect{MinLat: lat, MaxLat: lat + 1, MinLng: lng, MaxLng: lng + 1})
	}
	g := NewRegion(rects)
	require.True(t, g.Indexed())

	for i := 0; i < 5000; i++ {
		// 一半样本落在整数网格上，覆盖共享边与角点
		lat := float64(rng.Intn(180) - 90)
		lng := float64(rng.Intn(360) - 180)
		if i%2 == 0 {
			lat += rng.Float64()
			lng += rng.Float64()
		}
		assert.Equal(t, g.scan(lat, lng), g.Contains(lat, lng), "lat=%v lng=%v", lat, lng)
	}
	for _, r := range rects {
		assert.True(t, g.Contains(r.MinLat, r.MinLng))
		assert.True(t, g.Contains(r.MaxLat, r.MaxLng))
	}
}

func TestRegionBound(t *testing.T) {
	g := NewRegion([]Rect{
		{MinLat: 0, MaxLat: 1, MinLng: 5, MaxLng: 6},
		{MinLat: -3, MaxLat: -2, MinLng: 10, MaxLng: 11},
	})
	b, ok := g.Bound()
	require.True(t, ok)
	assert.Equal(t, -3.0, b.Min.Lat())
	assert.Equal(t, 1.0, b.Max.Lat())
	assert.Equal(t, 5.0, b.Min.Lon())
	assert.Equal(t, 11.0, b.Max.Lon())
}
