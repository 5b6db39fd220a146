package api

import "elevation-api/internal/elevation"

// 文档注释：批量查询返回结构（对外）
// 背景：results 与请求中的坐标一一对应且顺序一致；单点失败以 error 字段表示，整体仍返回 200。
// 约束：字段稳定；新增字段需评估兼容性。
type lookupResponse struct {
	Results []elevation.Result `json:"results"`
}

// errorResponse：批次级错误，400 时返回
type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Groups   int    `json:"groups"`
	Shards   int    `json:"shards"`
	Resident int    `json:"resident"`
	Capacity int    `json:"capacity"`
}
