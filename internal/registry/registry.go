// 包 registry：分层空间路由（数据集分组 → 分片），回答“哪个分片覆盖该坐标”
package registry

import (
	"errors"
	"fmt"
	"sort"

	"elevation-api/internal/geo"
	"elevation-api/internal/logger"
)

var (
	ErrEmptyKey       = errors.New("registry: empty group key")
	ErrDuplicateGroup = errors.New("registry: duplicate group key")
	ErrDuplicateShard = errors.New("registry: duplicate shard path")
)

// ShardConfig：单个数据集分片的构建输入
type ShardConfig struct {
	Path       string
	Projection string
	Rects      []geo.Rect
}

// GroupConfig：数据集分组的构建输入，Shards 顺序即配置顺序
// Extent 非空时作为分组覆盖区域，否则取全部分片矩形的并集
type GroupConfig struct {
	Key    string
	Extent []geo.Rect
	Shards []ShardConfig
}

// Shard：可独立寻址的数据集；Coverage 为其瓦片矩形集合
type Shard struct {
	Path       string
	Projection string
	Coverage   *geo.Region
}

// Group：分组及其覆盖区域
type Group struct {
	Key      string
	Shards   []*Shard
	Coverage *geo.Region
}

// Status：路由结果类别；未命中是常规结果而不是错误
type Status int

const (
	Found Status = iota
	NoMatchingDataset
	NoMatchingShard
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NoMatchingDataset:
		return "no_matching_dataset"
	case NoMatchingShard:
		return "no_matching_shard"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Resolution：Status 为 Found 时 Group 与 Shard 均非空；NoMatchingShard 时仅 Group 非空
type Resolution struct {
	Status Status
	Group  *Group
	Shard  *Shard
}

// 文档注释：空间注册表
// 背景：进程启动时一次性构建，之后只读；并发读取无需加锁。
// 约束：分组按 key 字典序升序遍历；分组内分片保持配置顺序，不做重排。
type Registry struct {
	groups []*Group
}

// 文档注释：构建注册表
// 背景：预先计算每个分片与分组的覆盖区域；不做任何 I/O，矩形数据由调用方从 summary 读取后传入。
// 异常：空 key、重复 key、重复分片路径、非法矩形均返回错误。
func Build(groups []GroupConfig) (*Registry, error) {
	r := &Registry{}
	seenKey := make(map[string]struct{}, len(groups))
	seenPath := make(map[string]string)
	for _, gc := range groups {
		if gc.Key == "" {
			return nil, ErrEmptyKey
		}
		if _, ok := seenKey[gc.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateGroup, gc.Key)
		}
		seenKey[gc.Key] = struct{}{}
		g := &Group{Key: gc.Key}
		var all []geo.Rect
		for _, sc := range gc.Shards {
			if owner, ok := seenPath[sc.Path]; ok {
				return nil, fmt.Errorf("%w: %q in %q and %q", ErrDuplicateShard, sc.Path, owner, gc.Key)
			}
			seenPath[sc.Path] = gc.Key
			for _, rect := range sc.Rects {
				if err := rect.Validate(); err != nil {
					return nil, fmt.Errorf("registry: shard %q: %w", sc.Path, err)
				}
			}
			if len(sc.Rects) == 0 {
				logger.L().Warn("registry_shard_empty", "group", gc.Key, "path", sc.Path)
			}
			g.Shards = append(g.Shards, &Shard{
				Path:       sc.Path,
				Projection: sc.Projection,
				Coverage:   geo.NewRegion(sc.Rects),
			})
			all = append(all, sc.Rects...)
		}
		if len(gc.Extent) > 0 {
			for _, rect := range gc.Extent {
				if err := rect.Validate(); err != nil {
					return nil, fmt.Errorf("registry: group %q extent: %w", gc.Key, err)
				}
			}
			all = gc.Extent
		}
		g.Coverage = geo.NewRegion(all)
		r.groups = append(r.groups, g)
	}
	sort.Slice(r.groups, func(i, j int) bool { return r.groups[i].Key < r.groups[j].Key })
	logger.L().Debug("registry_build_done", "groups", len(r.groups), "shards", len(seenPath))
	return r, nil
}

// 文档注释：坐标路由（首个命中，非最精确命中）
// 背景：先按 key 顺序找到第一个覆盖该点的分组，再在组内按配置顺序找第一个覆盖该点的分片。
// 约束：分组命中但组内无分片命中时直接返回 NoMatchingShard，不再尝试后续分组。
func (r *Registry) Resolve(lat, lng float64) Resolution {
	for _, g := range r.groups {
		if !g.Coverage.Contains(lat, lng) {
			continue
		}
		for _, s := range g.Shards {
			if s.Coverage.Contains(lat, lng) {
				return Resolution{Status: Found, Group: g, Shard: s}
			}
		}
		return Resolution{Status: NoMatchingShard, Group: g}
	}
	return Resolution{Status: NoMatchingDataset}
}

// Groups：按 key 排序后的分组（只读引用，调用方不得修改）
func (r *Registry) Groups() []*Group { return r.groups }

// Paths：全部分片路径，按遍历顺序
func (r *Registry) Paths() []string {
	var out []string
	for _, g := range r.groups {
		for _, s := range g.Shards {
			out = append(out, s.Path)
		}
	}
	return out
}
