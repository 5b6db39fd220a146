package api

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：计算布隆过滤器位置
// 参数：data 为参与哈希的字节序列，m 为位图大小，k 为哈希次数。
// 背景：FNV64a 结合索引扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(h.Sum64() % uint64(m))
	}
	return pos
}

// 文档注释：当日访客去重
// 背景：统计中的访客数按自然日去重；位图存放在 redis，按日期分键并设置过期，多实例共享。
// 约束：rc 为空时无法判断，视为非新访客；误判只会少计访客，不影响查询。
type VisitorFilter struct {
	rc  *redis.Client
	m   uint32
	k   int
	ttl time.Duration
}

func NewVisitorFilter(rc *redis.Client) *VisitorFilter {
	return &VisitorFilter{rc: rc, m: 1 << 20, k: 4, ttl: 48 * time.Hour}
}

// FirstSeen：访客今日首次出现时返回 true 并写入位图
func (f *VisitorFilter) FirstSeen(ctx context.Context, visitor string) (bool, error) {
	if f == nil || f.rc == nil || visitor == "" {
		return false, nil
	}
	key := "elev:visitors:" + time.Now().UTC().Format("20060102")
	positions := bloomPositions([]byte(visitor), f.m, f.k)
	pipe := f.rc.Pipeline()
	cmds := make([]*redis.IntCmd, len(positions))
	for i, p := range positions {
		cmds[i] = pipe.SetBit(ctx, key, p, 1)
	}
	pipe.Expire(ctx, key, f.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	// SetBit 返回旧值；任一位原为 0 即为首次出现
	for _, c := range cmds {
		if c.Val() == 0 {
			return true, nil
		}
	}
	return false, nil
}
