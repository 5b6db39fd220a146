package elevation

import (
	"context"
	"fmt"

	"elevation-api/internal/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxPoints = 512
	DefaultWorkers   = 8
)

// Looker：单点查询，*Router 实现
type Looker interface {
	Lookup(ctx context.Context, lat, lng float64) Result
}

// Options：批量查询参数；零值取默认
type Options struct {
	MaxPoints int
	Workers   int
}

// Service：批量查询
type Service struct {
	router Looker
	opts   Options
}

func NewService(router Looker, opts Options) *Service {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Service{router: router, opts: opts}
}

// MaxPoints：单批上限
func (s *Service) MaxPoints() int { return s.opts.MaxPoints }

// 文档注释：批量查询
// 背景：每个点独立查询，单点失败只写入该点结果，不影响同批其他点；并发度受 Workers 限制。
// 约束：输出与输入等长且顺序一致；空输入返回空切片；超过 MaxPoints 返回 *ParseError 且不执行任何查询。
func (s *Service) LookupMany(ctx context.Context, points []Point) ([]Result, error) {
	if len(points) > s.opts.MaxPoints {
		return nil, &ParseError{Msg: fmt.Sprintf("Too many locations (%d > %d).", len(points), s.opts.MaxPoints)}
	}
	out := make([]Result, len(points))
	if len(points) == 0 {
		return out, nil
	}
	metrics.BatchSize.Observe(float64(len(points)))
	// 不使用 WithContext：单点失败不取消兄弟任务
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, p := range points {
		g.Go(func() error {
			out[i] = s.router.Lookup(ctx, p.Lat, p.Lng)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
