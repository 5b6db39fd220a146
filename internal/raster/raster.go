// 包 raster：数据集访问器契约与 SRTM .hgt 瓦片实现
package raster

import (
	"context"
	"errors"
	"io"
)

var (
	ErrOutOfBounds = errors.New("raster: coordinate outside dataset extent")
	ErrNoData      = errors.New("raster: no data at coordinate")
	ErrClosed      = errors.New("raster: handle closed")
	ErrBadTile     = errors.New("raster: malformed tile")
	ErrProjection  = errors.New("raster: unsupported projection")
)

// Handle：已打开的数据集；Sample 必须可被并发调用，Close 后 Sample 返回 ErrClosed
type Handle interface {
	Sample(lat, lng float64) (float64, error)
	io.Closer
}

// Opener：按路径打开数据集，打开是唯一的阻塞/失败步骤
type Opener interface {
	Open(ctx context.Context, path string) (Handle, error)
}

// OpenerFunc：函数适配器
type OpenerFunc func(ctx context.Context, path string) (Handle, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Handle, error) { return f(ctx, path) }
