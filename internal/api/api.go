// 包 api：集中注册 HTTP 路由以解耦主入口
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"elevation-api/internal/elevation"
	"elevation-api/internal/logger"
	"elevation-api/internal/metrics"
	"elevation-api/internal/middleware"
	"elevation-api/internal/pool"
	"elevation-api/internal/registry"
	"elevation-api/internal/store"
)

// maxBodyBytes：POST 请求体上限
const maxBodyBytes = 4 << 20

// Deps：路由依赖；Base 为附属接口的挂载前缀，Store 与 Visitors 可为空
type Deps struct {
	Endpoint string
	Base     string
	Service  *elevation.Service
	Registry *registry.Registry
	Pool     *pool.Pool
	Store    *store.Store
	Visitors *VisitorFilter
}

// 文档注释：构建路由
// 背景：查询接口挂在 Endpoint（GET 查询串 / POST JSON），Base 下挂 coverage/stats/healthz。
// 约束：Endpoint 需以 / 开头且不以 / 结尾；其余方法由 ServeMux 返回 405。
func BuildRoutes(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	base := d.Base
	h := &lookupHandler{d: d}
	mux.HandleFunc("GET "+d.Endpoint, h.get)
	mux.HandleFunc("POST "+d.Endpoint, h.post)

	mux.HandleFunc("GET "+base+"/coverage", func(w http.ResponseWriter, r *http.Request) {
		b, err := coverageCollection(d.Registry).MarshalJSON()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		w.Header().Set("content-type", "application/geo+json; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(b)
	})

	mux.HandleFunc("GET "+base+"/stats", func(w http.ResponseWriter, r *http.Request) {
		t, err := d.Store.GetTotals(r.Context())
		if err != nil {
			logger.L().Error("stats_read_error", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "stats unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	mux.HandleFunc("GET "+base+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		res := healthResponse{Status: "ok", Shards: len(d.Registry.Paths()), Groups: len(d.Registry.Groups())}
		if d.Pool != nil {
			res.Resident = d.Pool.Len()
			res.Capacity = d.Pool.Capacity()
		}
		writeJSON(w, http.StatusOK, res)
	})
	return mux
}

type lookupHandler struct {
	d Deps
}

func (h *lookupHandler) get(w http.ResponseWriter, r *http.Request) {
	t0 := time.Now()
	s := r.URL.Query().Get("locations")
	pts, err := elevation.ParseLocations(s)
	h.respond(w, r, t0, pts, err)
}

func (h *lookupHandler) post(w http.ResponseWriter, r *http.Request) {
	t0 := time.Now()
	pts, err := elevation.ParseBody(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	h.respond(w, r, t0, pts, err)
}

// respond：解析失败整批 400；否则派发并返回 200
func (h *lookupHandler) respond(w http.ResponseWriter, r *http.Request, t0 time.Time, pts []elevation.Point, err error) {
	var results []elevation.Result
	if err == nil {
		results, err = h.d.Service.LookupMany(r.Context(), pts)
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadRequest
		var pe *elevation.ParseError
		msg := err.Error()
		if errors.As(err, &pe) {
			msg = pe.Msg
			metrics.ParseErrorsTotal.Inc()
		}
		logger.L().Debug("lookup_rejected", "method", r.Method, "err", msg)
		writeJSON(w, code, errorResponse{Error: msg})
	} else {
		writeJSON(w, code, lookupResponse{Results: results})
		h.record(r, len(pts))
	}
	metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(code)).Inc()
	metrics.RequestDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
}

// record：统计写入失败只记日志
func (h *lookupHandler) record(r *http.Request, points int) {
	if !h.d.Store.Enabled() {
		return
	}
	ctx := r.Context()
	first, err := h.d.Visitors.FirstSeen(ctx, middleware.ClientIP(r))
	if err != nil {
		logger.L().Warn("visitor_filter_error", "err", err)
	}
	if err := h.d.Store.IncrStats(ctx, points, first); err != nil {
		logger.L().Warn("stats_write_error", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
