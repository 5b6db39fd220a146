// 包 elevation：高程查询核心，串联空间路由、句柄池与采样，并提供批量查询与请求解析
package elevation

import (
	"fmt"
	"strconv"

	"elevation-api/internal/geo"
)

// Point：查询坐标
type Point = geo.Point

// Reason：单点失败的内部分类，用于日志与指标；对外只暴露 Error 文案
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonDataset  Reason = "no_matching_dataset"
	ReasonShard    Reason = "no_matching_shard"
	ReasonOpen     Reason = "open"
	ReasonSample   Reason = "sample"
	ReasonPanic    Reason = "panic"
	ReasonCanceled Reason = "canceled"
)

const (
	MsgNoDataset = "no matching elevation dataset"
	MsgNoShard   = "no matching interface"
)

// 文档注释：单点查询结果（对外）
// 背景：成功时携带 elevation，失败时携带 error；两者互斥，经纬度始终回显输入值。
// 约束：Elevation 使用指针以便 0 米高程仍被序列化；Reason 不参与序列化。
type Result struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
	Error     string   `json:"error,omitempty"`
	Reason    Reason   `json:"-"`
}

// OK：是否为成功结果
func (r Result) OK() bool { return r.Reason == ReasonNone && r.Elevation != nil }

func (r Result) outcome() string {
	if r.OK() {
		return "ok"
	}
	return string(r.Reason)
}

func success(lat, lng, v float64) Result {
	return Result{Latitude: lat, Longitude: lng, Elevation: &v}
}

func failure(lat, lng float64, reason Reason) Result {
	return Result{Latitude: lat, Longitude: lng, Error: message(reason, lat, lng), Reason: reason}
}

// message：分类到对外文案；打开、采样、取消与异常统一为 no such coordinate
func message(reason Reason, lat, lng float64) string {
	switch reason {
	case ReasonDataset:
		return MsgNoDataset
	case ReasonShard:
		return MsgNoShard
	}
	return fmt.Sprintf("no such coordinate (%s, %s)", formatCoord(lat), formatCoord(lng))
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
