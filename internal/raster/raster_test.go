package raster

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hgtBytes：3×3 网格，值按行优先（首行为北）
func hgtBytes(vals [9]int16) []byte {
	b := make([]byte, 18)
	for i, v := range vals {
		binary.BigEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

var sampleGrid = [9]int16{
	100, 101, 102,
	110, -32768, 112,
	120, 121, 122,
}

func writeTile(t *testing.T, dir, name string, b []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func TestParseTileName(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng int
		ok       bool
	}{
		{"N45E006.hgt", 45, 6, true},
		{"S12W077.hgt.zip", -12, -77, true},
		{"n00e000.HGT", 0, 0, true},
		{"N45E006.hgt.zst", 45, 6, true},
		{"N45E006.tif", 0, 0, false},
		{"X45E006.hgt", 0, 0, false},
		{"N95E006.hgt", 0, 0, false},
		{"N4E6.hgt", 0, 0, false},
		{"summary.json", 0, 0, false},
	}
	for _, c := range cases {
		lat, lng, ok := ParseTileName(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		if c.ok {
			assert.Equal(t, c.lat, lat, c.name)
			assert.Equal(t, c.lng, lng, c.name)
		}
	}
	assert.Equal(t, "S12W077", TileName(-12, -77))
	assert.Equal(t, "N45E006", TileName(45, 6))
}

func TestEnsureSummary(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N01E002.hgt", hgtBytes(sampleGrid))
	writeTile(t, dir, "N00E002.hgt", hgtBytes(sampleGrid))
	writeTile(t, dir, "README.txt", []byte("x"))

	entries, err := EnsureSummary(dir, false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "N00E002.hgt", entries[0].File)
	assert.Equal(t, [4]float64{0, 1, 2, 3}, entries[0].Coords)
	assert.True(t, HasSummary(dir))

	// 已有摘要时复用，不受目录新增文件影响
	writeTile(t, dir, "N02E002.hgt", hgtBytes(sampleGrid))
	entries, err = EnsureSummary(dir, false)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = EnsureSummary(dir, true)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Len(t, Rects(entries), 3)
}

func TestBuildSummaryEmpty(t *testing.T) {
	_, err := BuildSummary(t.TempDir())
	assert.Error(t, err)
}

func TestReadSummaryRejectsBadRect(t *testing.T) {
	for _, body := range []string{
		`[{"file":"a.hgt","coords":[5,1,0,1]}]`,
		`[{"file":"a.hgt","coords":[1,1,0,1]}]`,
		`[{"file":"a.hgt","coords":[0,1,2,2]}]`,
	} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(SummaryPath(dir), []byte(body), 0o644))
		_, err := ReadSummary(dir)
		assert.Error(t, err, body)

		_, err = NewHGTOpener(nil).Open(context.Background(), dir)
		assert.Error(t, err, body)
	}
}

func openDataset(t *testing.T, dir string) Handle {
	t.Helper()
	_, err := EnsureSummary(dir, true)
	require.NoError(t, err)
	h, err := NewHGTOpener(nil).Open(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestDatasetSample(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N00E000.hgt", hgtBytes(sampleGrid))
	h := openDataset(t, dir)

	v, err := h.Sample(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	v, err = h.Sample(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 122.0, v)

	v, err = h.Sample(0.4, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 110.0, v)

	_, err = h.Sample(0.5, 0.5)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = h.Sample(2, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDatasetCompressedTiles(t *testing.T) {
	dir := t.TempDir()

	zf, err := os.Create(filepath.Join(dir, "N00E000.hgt.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	junk, err := zw.Create(".DS_Store")
	require.NoError(t, err)
	_, _ = junk.Write([]byte("junk"))
	w, err := zw.Create("N00E000.hgt")
	require.NoError(t, err)
	_, err = w.Write(hgtBytes(sampleGrid))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	alt := sampleGrid
	alt[0] = 500
	writeTile(t, dir, "N00E001.hgt.zst", enc.EncodeAll(hgtBytes(alt), nil))
	require.NoError(t, enc.Close())

	h := openDataset(t, dir)

	v, err := h.Sample(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	// 共享边 lng=1 落在先出现的瓦片 N00E000
	v, err = h.Sample(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 102.0, v)

	v, err = h.Sample(1, 1.1)
	require.NoError(t, err)
	assert.Equal(t, 500.0, v)
}

func TestDatasetCorruptTile(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N00E000.hgt", []byte{1, 2, 3})
	h := openDataset(t, dir)
	_, err := h.Sample(0.5, 0.5)
	assert.ErrorIs(t, err, ErrBadTile)
}

func withMaxTileBytes(t *testing.T, n int64) {
	t.Helper()
	old := maxTileBytes
	maxTileBytes = n
	t.Cleanup(func() { maxTileBytes = old })
}

func TestDatasetOversizedCompressedTiles(t *testing.T) {
	// 5×5 网格 50 字节，上限 18 字节只容纳 3×3
	big := make([]byte, 50)
	withMaxTileBytes(t, 18)

	dir := t.TempDir()
	zf, err := os.Create(filepath.Join(dir, "N00E000.hgt.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	w, err := zw.Create("N00E000.hgt")
	require.NoError(t, err)
	_, err = w.Write(big)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	writeTile(t, dir, "N00E001.hgt.zst", enc.EncodeAll(big, nil))
	require.NoError(t, enc.Close())
	writeTile(t, dir, "N00E002.hgt", big)

	h := openDataset(t, dir)
	for _, lng := range []float64{0.5, 1.5, 2.5} {
		_, err := h.Sample(0.5, lng)
		assert.ErrorIs(t, err, ErrBadTile, lng)
	}
}

func TestZstdTileAtSizeLimit(t *testing.T) {
	withMaxTileBytes(t, 18)
	b, err := readZstdBytes(t, hgtBytes(sampleGrid))
	require.NoError(t, err)
	assert.Len(t, b, 18)
}

func readZstdBytes(t *testing.T, raw []byte) ([]byte, error) {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	file := filepath.Join(t.TempDir(), "N00E000.hgt.zst")
	require.NoError(t, os.WriteFile(file, enc.EncodeAll(raw, nil), 0o644))
	return readZstd(file)
}

func TestDatasetClosed(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N00E000.hgt", hgtBytes(sampleGrid))
	h := openDataset(t, dir)
	_, err := h.Sample(1, 0)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = h.Sample(1, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenFailures(t *testing.T) {
	o := NewHGTOpener(map[string]string{"/utm": "EPSG:32632"})
	_, err := o.Open(context.Background(), "/utm")
	assert.ErrorIs(t, err, ErrProjection)

	_, err = o.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
