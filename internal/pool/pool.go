// 包 pool：数据集句柄池，按容量上限缓存已打开的句柄并按最近最少使用淘汰
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
	"elevation-api/internal/raster"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity：默认最多同时驻留的句柄数
const DefaultCapacity = 8

// ErrOpen：打开失败的哨兵错误，使用 errors.Is 判断
var ErrOpen = errors.New("pool: open failed")

// ErrClosed：池已关闭
var ErrClosed = errors.New("pool: closed")

// OpenError：携带路径与底层原因的打开失败
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string        { return fmt.Sprintf("pool: open %s: %v", e.Path, e.Err) }
func (e *OpenError) Unwrap() error        { return e.Err }
func (e *OpenError) Is(target error) bool { return target == ErrOpen }

type entry struct {
	path    string
	h       raster.Handle
	refs    int
	evicted bool
}

// Stats：池内计数快照
type Stats struct {
	Resident  int
	Hits      int64
	Misses    int64
	Evictions int64
	Failures  int64
}

// 文档注释：有界句柄池
// 背景：打开数据集需要 I/O 与头部解析，代价高；池负责句柄的全部生命周期，调用方从不直接关闭句柄。
// 约束：
// 1) 驻留数量不超过 capacity；插入新句柄前先淘汰严格意义上最近最少使用的驻留项；
// 2) 查找/淘汰/插入/刷新在同一把互斥锁内完成；打开在锁外进行，但同一路径同一时刻至多一个打开（singleflight）；
// 3) 并发打开数不超过 capacity（semaphore）；先打开后淘汰，瞬时句柄峰值为 capacity 个驻留 + 至多 capacity 个打开中 + 已淘汰但仍被钉住的；
// 4) 打开失败不改变其他驻留项的状态；
// 5) 通过 With 使用的句柄在回调期间被钉住，期间被淘汰时延迟到回调结束再关闭。
type Pool struct {
	capacity int
	opener   raster.Opener
	opens    *semaphore.Weighted
	group    singleflight.Group

	mu     sync.Mutex
	lst    *list.List // 前端为最近使用
	dict   map[string]*list.Element
	closed bool
	stats  Stats
}

// New：capacity<=0 时使用 DefaultCapacity
func New(capacity int, opener raster.Opener) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		opener:   opener,
		opens:    semaphore.NewWeighted(int64(capacity)),
		lst:      list.New(),
		dict:     make(map[string]*list.Element),
	}
}

// Capacity：容量上限
func (p *Pool) Capacity() int { return p.capacity }

// 文档注释：获取路径对应的句柄
// 背景：已驻留则刷新为最近使用并直接返回同一实例；否则打开、必要时淘汰、插入并返回。
// 约束：返回的句柄未被钉住，后续淘汰可能将其关闭；需要在采样期间保证句柄可用时使用 With。
// 异常：打开失败返回 *OpenError（errors.Is(err, ErrOpen) 为真）；池已关闭返回 ErrClosed；
// 等待打开期间 ctx 取消返回 ctx.Err()，同路径的其他等待方不受影响。
func (p *Pool) Acquire(ctx context.Context, path string) (raster.Handle, error) {
	e, err := p.acquire(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return e.h, nil
}

// With：获取并钉住句柄，回调结束后释放；回调返回的错误原样透传
func (p *Pool) With(ctx context.Context, path string, fn func(raster.Handle) error) error {
	e, err := p.acquire(ctx, path, true)
	if err != nil {
		return err
	}
	defer p.unpin(e)
	return fn(e.h)
}

func (p *Pool) acquire(ctx context.Context, path string, pin bool) (*entry, error) {
	for {
		if e, ok, err := p.lookup(path, pin); err != nil || ok {
			return e, err
		}
		// 共享的打开不随任一调用方取消；调用方取消只退出自己的等待
		ch := p.group.DoChan(path, func() (any, error) {
			return p.load(context.WithoutCancel(ctx), path)
		})
		var r singleflight.Result
		select {
		case r = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		e := r.Val.(*entry)
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		// 打开完成到此处之间已被挤出且句柄已关闭，重新获取
		if e.evicted && e.refs == 0 {
			p.mu.Unlock()
			continue
		}
		if el, ok := p.dict[path]; ok && el.Value.(*entry) == e {
			p.lst.MoveToFront(el)
		}
		if pin {
			e.refs++
		}
		p.mu.Unlock()
		return e, nil
	}
}

// lookup：命中则刷新并返回
func (p *Pool) lookup(path string, pin bool) (*entry, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrClosed
	}
	el, ok := p.dict[path]
	if !ok {
		return nil, false, nil
	}
	p.lst.MoveToFront(el)
	p.stats.Hits++
	metrics.PoolHitsTotal.Inc()
	e := el.Value.(*entry)
	if pin {
		e.refs++
	}
	return e, true, nil
}

// load：在 singleflight 内执行，同一路径只有一个 load 在运行
func (p *Pool) load(ctx context.Context, path string) (*entry, error) {
	p.mu.Lock()
	if el, ok := p.dict[path]; ok {
		// 上一轮 singleflight 已完成插入
		e := el.Value.(*entry)
		p.mu.Unlock()
		return e, nil
	}
	p.stats.Misses++
	p.mu.Unlock()
	metrics.PoolMissesTotal.Inc()

	if err := p.opens.Acquire(ctx, 1); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	t0 := time.Now()
	h, err := p.opener.Open(ctx, path)
	p.opens.Release(1)
	metrics.PoolOpenDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		p.mu.Lock()
		p.stats.Failures++
		p.mu.Unlock()
		metrics.PoolOpenFailuresTotal.Inc()
		logger.L().Warn("pool_open_error", "path", path, "err", err)
		return nil, &OpenError{Path: path, Err: err}
	}

	e := &entry{path: path, h: h}
	var victims []raster.Handle
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = h.Close()
		return nil, ErrClosed
	}
	for p.lst.Len() >= p.capacity {
		if v := p.evictOldest(); v != nil {
			victims = append(victims, v)
		}
	}
	p.dict[path] = p.lst.PushFront(e)
	resident := p.lst.Len()
	p.mu.Unlock()
	metrics.PoolResident.Set(float64(resident))
	logger.L().Debug("pool_open_ok", "path", path, "resident", resident, "ms", time.Since(t0).Milliseconds())
	closeAll(victims)
	return e, nil
}

// evictOldest：移除最近最少使用项；被钉住时延迟关闭并返回 nil。调用方持有锁
func (p *Pool) evictOldest() raster.Handle {
	back := p.lst.Back()
	if back == nil {
		return nil
	}
	e := back.Value.(*entry)
	p.lst.Remove(back)
	delete(p.dict, e.path)
	e.evicted = true
	p.stats.Evictions++
	metrics.PoolEvictionsTotal.Inc()
	logger.L().Debug("pool_evict", "path", e.path, "pinned", e.refs > 0)
	if e.refs > 0 {
		return nil
	}
	return e.h
}

func (p *Pool) unpin(e *entry) {
	p.mu.Lock()
	e.refs--
	release := e.evicted && e.refs == 0
	p.mu.Unlock()
	if release {
		closeAll([]raster.Handle{e.h})
	}
}

func closeAll(hs []raster.Handle) {
	for _, h := range hs {
		if err := h.Close(); err != nil {
			logger.L().Warn("pool_close_error", "err", err)
		}
	}
}

// Resident：路径是否驻留
func (p *Pool) Resident(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.dict[path]
	return ok
}

// Len：驻留数量
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lst.Len()
}

// Paths：驻留路径，从最近使用到最久未用
func (p *Pool) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, p.lst.Len())
	for el := p.lst.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).path)
	}
	return out
}

// Stats：计数快照
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Resident = p.lst.Len()
	return s
}

// 文档注释：关闭池
// 背景：进程退出时显式关闭每个驻留句柄；被钉住的句柄在回调结束后关闭。
// 约束：关闭后 Acquire/With 返回 ErrClosed；重复调用无副作用。
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var hs []raster.Handle
	for el := p.lst.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		e.evicted = true
		if e.refs == 0 {
			hs = append(hs, e.h)
		}
	}
	p.lst.Init()
	p.dict = make(map[string]*list.Element)
	p.mu.Unlock()
	metrics.PoolResident.Set(0)
	var first error
	for _, h := range hs {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	logger.L().Info("pool_closed", "closed", len(hs))
	return first
}
