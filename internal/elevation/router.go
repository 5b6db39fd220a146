package elevation

import (
	"context"
	"errors"
	"fmt"

	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
	"elevation-api/internal/pool"
	"elevation-api/internal/raster"
	"elevation-api/internal/registry"
)

// Resolver：坐标到分片的路由
type Resolver interface {
	Resolve(lat, lng float64) registry.Resolution
}

// Accessors：按分片路径借用句柄；回调期间句柄保持可用
type Accessors interface {
	With(ctx context.Context, path string, fn func(raster.Handle) error) error
}

// Router：单点查询
type Router struct {
	res Resolver
	acc Accessors
}

func NewRouter(res Resolver, acc Accessors) *Router {
	return &Router{res: res, acc: acc}
}

// 文档注释：查询单点高程
// 背景：路由 → 借用句柄 → 采样；每个阶段的失败都编码为该点的结果，不向批次外传播，不重试。
// 约束：
// 1) 无分组命中返回 no matching elevation dataset；分组命中但无分片命中返回 no matching interface；
// 2) 打开失败、采样失败（越界/空洞/其他）与单点处理中的 panic 统一返回 no such coordinate；
// 3) ctx 已取消时不再访问句柄池。
func (rt *Router) Lookup(ctx context.Context, lat, lng float64) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.L().Error("lookup_panic", "lat", lat, "lng", lng, "panic", fmt.Sprint(p))
			res = failure(lat, lng, ReasonPanic)
		}
		metrics.PointsTotal.WithLabelValues(res.outcome()).Inc()
	}()
	if ctx.Err() != nil {
		return failure(lat, lng, ReasonCanceled)
	}
	r := rt.res.Resolve(lat, lng)
	switch r.Status {
	case registry.NoMatchingDataset:
		return failure(lat, lng, ReasonDataset)
	case registry.NoMatchingShard:
		logger.L().Debug("lookup_no_shard", "lat", lat, "lng", lng, "group", r.Group.Key)
		return failure(lat, lng, ReasonShard)
	}

	var v float64
	err := rt.acc.With(ctx, r.Shard.Path, func(h raster.Handle) error {
		var err error
		v, err = h.Sample(lat, lng)
		return err
	})
	if err != nil {
		reason := classify(err)
		logger.L().Debug("lookup_fail", "lat", lat, "lng", lng, "path", r.Shard.Path, "reason", string(reason), "err", err)
		return failure(lat, lng, reason)
	}
	return success(lat, lng, v)
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, pool.ErrOpen), errors.Is(err, pool.ErrClosed):
		return ReasonOpen
	}
	return ReasonSample
}
