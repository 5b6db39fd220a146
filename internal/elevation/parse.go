package elevation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	MsgLocationsRequired       = `"Locations" is required.`
	MsgLocationsRequiredInBody = `"Locations" is required in the body.`
	MsgInvalidJSON             = `Invalid JSON.`
)

// ParseError：批次级解析失败，整批拒绝，不返回部分结果
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

func badParam(s string) *ParseError {
	return &ParseError{Msg: fmt.Sprintf("Bad parameter format \"%s\".", s)}
}

// 文档注释：解析查询串形式的坐标列表
// 背景：形如 lat1,lng1|lat2,lng2；任一项格式错误即整批失败。
// 约束：每项恰好两个有限数字；允许数字两侧空白；NaN 与 Inf 视为格式错误。
func ParseLocations(s string) ([]Point, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &ParseError{Msg: MsgLocationsRequired}
	}
	parts := strings.Split(s, "|")
	out := make([]Point, 0, len(parts))
	for _, part := range parts {
		ll := strings.Split(part, ",")
		if len(ll) != 2 {
			return nil, badParam(part)
		}
		lat, ok := parseCoord(ll[0])
		if !ok {
			return nil, badParam(part)
		}
		lng, ok := parseCoord(ll[1])
		if !ok {
			return nil, badParam(part)
		}
		out = append(out, Point{Lat: lat, Lng: lng})
	}
	return out, nil
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type bodyLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// 文档注释：解析 POST 请求体
// 背景：{"locations":[{"latitude":..,"longitude":..}, ...]}；请求体不是 JSON 对象或缺少 locations 键时返回 Invalid JSON。
// 约束：locations 为 null 或空数组返回 required；任一条目缺字段或字段非数字即整批失败，错误中回显该条目。
func ParseBody(r io.Reader) ([]Point, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&body); err != nil || body == nil {
		return nil, &ParseError{Msg: MsgInvalidJSON}
	}
	raw, ok := body["locations"]
	if !ok {
		return nil, &ParseError{Msg: MsgInvalidJSON}
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &ParseError{Msg: MsgLocationsRequiredInBody}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &ParseError{Msg: MsgInvalidJSON}
	}
	if len(entries) == 0 {
		return nil, &ParseError{Msg: MsgLocationsRequiredInBody}
	}
	out := make([]Point, 0, len(entries))
	for _, e := range entries {
		var loc bodyLocation
		trimmed := bytes.TrimSpace(e)
		if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(e, &loc) != nil ||
			loc.Latitude == nil || loc.Longitude == nil {
			return nil, invalidEntry(e)
		}
		out = append(out, Point{Lat: *loc.Latitude, Lng: *loc.Longitude})
	}
	return out, nil
}

func invalidEntry(raw json.RawMessage) *ParseError {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	return &ParseError{Msg: fmt.Sprintf(`"%s" is not in a valid format.`, buf.String())}
}
