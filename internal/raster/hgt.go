package raster

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"elevation-api/internal/geo"
	"elevation-api/internal/logger"

	"github.com/klauspost/compress/zstd"
)

// hgtVoid：SRTM 空洞值
const hgtVoid = -32768

// 文档注释：HGT 数据集打开器
// 背景：每个分片路径是一个包含 summary.json 与若干 .hgt 瓦片的目录；打开即解析摘要并建立瓦片索引，
// 瓦片文件在首次采样时才打开，关闭数据集时统一释放。
// 约束：仅支持经纬度网格（EPSG:4326）；投影标识由配置透传，非经纬度投影在打开时拒绝。
type HGTOpener struct {
	projections map[string]string
}

// NewHGTOpener：projections 为分片路径到投影标识的映射，可为空
func NewHGTOpener(projections map[string]string) *HGTOpener {
	return &HGTOpener{projections: projections}
}

// Open：读取摘要并返回数据集句柄；摘要缺失或损坏、投影不支持时返回错误
func (o *HGTOpener) Open(ctx context.Context, path string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proj := o.projections[path]
	if !geographic(proj) {
		return nil, fmt.Errorf("%w: %q for %s", ErrProjection, proj, path)
	}
	entries, err := ReadSummary(path)
	if err != nil {
		return nil, err
	}
	d := &Dataset{path: path, projection: proj, tiles: make([]*tile, 0, len(entries))}
	for _, e := range entries {
		d.tiles = append(d.tiles, &tile{file: filepath.Join(path, e.File), rect: e.Rect()})
	}
	logger.L().Debug("dataset_open", "path", path, "tiles", len(d.tiles))
	return d, nil
}

func geographic(proj string) bool {
	switch strings.ToUpper(strings.TrimSpace(proj)) {
	case "", "EPSG:4326", "4326", "WGS84", "WGS 84":
		return true
	}
	return false
}

// Dataset：HGT 目录句柄
type Dataset struct {
	path       string
	projection string

	mu     sync.Mutex
	closed bool
	tiles  []*tile
}

type tile struct {
	file string
	rect geo.Rect

	once sync.Once
	grid *grid
	err  error
}

// grid：n×n 的大端 int16 采样，首行为北边界
type grid struct {
	n  int
	r  io.ReaderAt
	cl io.Closer
}

// Path：数据集目录
func (d *Dataset) Path() string { return d.path }

// Projection：配置透传的投影标识
func (d *Dataset) Projection() string { return d.projection }

// 文档注释：采样高程
// 背景：按摘要顺序找到第一个包含该点的瓦片，取最近格点的值；共享边界上的点落在先出现的瓦片。
// 异常：超出全部瓦片返回 ErrOutOfBounds；空洞返回 ErrNoData；瓦片损坏或读失败原样返回。
func (d *Dataset) Sample(lat, lng float64) (float64, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	var t *tile
	for _, c := range d.tiles {
		if c.rect.Contains(lat, lng) {
			t = c
			break
		}
	}
	d.mu.Unlock()
	if t == nil {
		return 0, ErrOutOfBounds
	}
	g, err := t.load()
	if err != nil {
		return 0, err
	}
	return g.sample(t.rect, lat, lng)
}

// Close：释放全部已打开的瓦片；重复调用无副作用
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var first error
	for _, t := range d.tiles {
		// 等待进行中的加载完成，避免泄漏刚打开的文件
		t.once.Do(func() { t.err = ErrClosed })
		if t.grid != nil && t.grid.cl != nil {
			if err := t.grid.cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	logger.L().Debug("dataset_close", "path", d.path)
	return first
}

func (t *tile) load() (*grid, error) {
	t.once.Do(func() { t.grid, t.err = openGrid(t.file) })
	return t.grid, t.err
}

func (g *grid) sample(r geo.Rect, lat, lng float64) (float64, error) {
	steps := float64(g.n - 1)
	row := int(math.Round((r.MaxLat - lat) / (r.MaxLat - r.MinLat) * steps))
	col := int(math.Round((lng - r.MinLng) / (r.MaxLng - r.MinLng) * steps))
	if row < 0 || row >= g.n || col < 0 || col >= g.n {
		return 0, ErrOutOfBounds
	}
	var buf [2]byte
	if _, err := g.r.ReadAt(buf[:], int64(row*g.n+col)*2); err != nil {
		return 0, fmt.Errorf("raster: read sample: %w", err)
	}
	v := int16(binary.BigEndian.Uint16(buf[:]))
	if v == hgtVoid {
		return 0, ErrNoData
	}
	return float64(v), nil
}

// 文档注释：打开瓦片
// 背景：.hgt 直接以文件句柄随机读取；.hgt.zip 与 .hgt.zst 解压到内存后读取。
// 约束：边长由字节数推导（1201 为 SRTM3，3601 为 SRTM1，测试可用更小网格），非正方形视为损坏。
func openGrid(file string) (*grid, error) {
	switch tileKind(file) {
	case ".hgt":
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		n, err := gridSide(st.Size())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return &grid{n: n, r: f, cl: f}, nil
	case ".hgt.zip":
		b, err := readZip(file)
		if err != nil {
			return nil, err
		}
		return memGrid(file, b)
	case ".hgt.zst":
		b, err := readZstd(file)
		if err != nil {
			return nil, err
		}
		return memGrid(file, b)
	}
	return nil, fmt.Errorf("%w: %s", ErrBadTile, file)
}

func memGrid(file string, b []byte) (*grid, error) {
	n, err := gridSide(int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &grid{n: n, r: bytes.NewReader(b)}, nil
}

// maxTileBytes：SRTM1（3601×3601×2 字节）为最大合法瓦片
var maxTileBytes int64 = 3601 * 3601 * 2

func gridSide(size int64) (int, error) {
	if size < 8 || size%2 != 0 || size > maxTileBytes {
		return 0, ErrBadTile
	}
	n := int(math.Round(math.Sqrt(float64(size / 2))))
	if int64(n)*int64(n)*2 != size {
		return 0, ErrBadTile
	}
	return n, nil
}

// readZip：取压缩包内第一个 .hgt 条目（跳过以 . 开头的杂项文件）
func readZip(file string) ([]byte, error) {
	z, err := zip.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer z.Close()
	for _, f := range z.File {
		base := filepath.Base(f.Name)
		if strings.HasPrefix(base, ".") || !strings.HasSuffix(strings.ToLower(base), ".hgt") {
			continue
		}
		if f.UncompressedSize64 > uint64(maxTileBytes) {
			return nil, fmt.Errorf("%w: %s: entry exceeds %d bytes", ErrBadTile, file, maxTileBytes)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return readCapped(file, rc)
	}
	return nil, fmt.Errorf("%w: %s has no .hgt entry", ErrBadTile, file)
}

func readZstd(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f, zstd.WithDecoderMaxMemory(uint64(maxTileBytes)+zstd.MinWindowSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return readCapped(file, dec)
}

// readCapped：解压结果超过 maxTileBytes 视为损坏，不继续读入内存
func readCapped(file string, r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadTile, file, err)
	}
	if int64(len(b)) > maxTileBytes {
		return nil, fmt.Errorf("%w: %s: decoded tile exceeds %d bytes", ErrBadTile, file, maxTileBytes)
	}
	return b, nil
}
