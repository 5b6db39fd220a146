// 包 middleware：入口限流，本地令牌桶与可选的 redis 共享窗口
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Counter：固定窗口计数，返回窗口内的累计值
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter：INCR + EXPIRE；键内含窗口序号，重复设置过期时间无副作用
type RedisCounter struct {
	rc     *redis.Client
	prefix string
}

func NewRedisCounter(rc *redis.Client) *RedisCounter {
	return &RedisCounter{rc: rc, prefix: "elev:rl:"}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := c.prefix + key
	pipe := c.rc.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Options：限流参数；Limit 为共享计数下每个访问者每个窗口的额度，默认 QPS×窗口秒数
type Options struct {
	QPS    int
	Burst  int
	Window time.Duration
	Limit  int64
	Shared Counter
}

// 文档注释：限流中间件
// 背景：批量查询会触发大量数据集打开与采样，入口限速保护句柄池与磁盘；超限直接返回 429，不排队。
// 约束：
// 1) 未配置共享计数时使用进程内令牌桶（x/time/rate），全局生效；
// 2) 配置共享计数时按访问者在固定窗口内计数，多实例共享额度；
// 3) 共享计数出错时回退到本地令牌桶，不因 redis 故障拒绝请求。
func RateLimit(opts Options) func(http.Handler) http.Handler {
	if opts.QPS <= 0 {
		opts.QPS = 200
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.QPS
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	local := rate.NewLimiter(rate.Limit(opts.QPS), opts.Burst)
	limit := opts.Limit
	if limit <= 0 {
		limit = int64(float64(opts.QPS) * opts.Window.Seconds())
	}
	if limit < 1 {
		limit = 1
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, by := true, "local"
			if opts.Shared != nil {
				bucket := strconv.FormatInt(time.Now().UnixNano()/int64(opts.Window), 10)
				n, err := opts.Shared.Incr(r.Context(), ClientIP(r)+":"+bucket, opts.Window)
				if err != nil {
					logger.L().Warn("ratelimit_shared_error", "err", err)
					allowed = local.Allow()
				} else {
					allowed, by = n <= limit, "shared"
				}
			} else {
				allowed = local.Allow()
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(by).Inc()
				w.Header().Set("retry-after", strconv.Itoa(int(opts.Window.Seconds()+0.5)))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP：优先常见反向代理头，其次 RemoteAddr
func ClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("cf-connecting-ip"); x != "" {
		return x
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\" ")
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
