package danmaku

import (
	"sync/atomic"
	"time"
)

// UnknownPosition 回放刚开始还不知道真实进度时上报的值
const UnknownPosition int64 = -1

// PositionTracker 播放进度 Report 可能每帧调用 只使用原子操作
type PositionTracker struct {
	current atomic.Int64
	last    atomic.Int64
	skip    atomic.Bool
	// 小于一个轮询周期的回退不算跳转
	tolerance int64
	startedAt time.Time
	now       func() time.Time
}

func NewPositionTracker(tolerance time.Duration, startedAt time.Time, now func() time.Time) *PositionTracker {
	if now == nil {
		now = time.Now
	}
	t := &PositionTracker{
		tolerance: tolerance.Milliseconds(),
		startedAt: startedAt,
		now:       now,
	}
	// 第一次tick一定会拉取
	t.last.Store(UnknownPosition)
	return t
}

func (t *PositionTracker) Report(offsetMs int64) {
	if offsetMs == UnknownPosition {
		return
	}
	t.current.Store(offsetMs)
	last := t.last.Load()
	if last != UnknownPosition && offsetMs < last-t.tolerance {
		t.skip.Store(true)
	}
}

func (t *PositionTracker) Current() int64 {
	return t.current.Load()
}

// Stalled 进度从上次拉取后没有变化
func (t *PositionTracker) Stalled() bool {
	return t.current.Load() == t.last.Load()
}

// ConsumeSkip 返回true时由调用方清空去重状态
func (t *PositionTracker) ConsumeSkip() bool {
	if !t.skip.CompareAndSwap(true, false) {
		return false
	}
	t.last.Store(UnknownPosition)
	return true
}

// Commit 拉取成功后记录本次使用的进度
// 拉取期间上报的回退在 Report 时还看不到新的 last 这里补一次判断
func (t *PositionTracker) Commit(offsetMs int64) {
	t.last.Store(offsetMs)
	if t.current.Load() < offsetMs-t.tolerance {
		t.skip.Store(true)
	}
}

// Stamp 直播弹幕没有自带时间时使用距离开播的时间 回放使用解析出的时间
func (t *PositionTracker) Stamp(c Comment, mode Mode) Comment {
	c.IsLive = mode == Live
	if c.IsLive && !c.HasOffset {
		offset := t.now().Sub(t.startedAt)
		if offset < 0 {
			offset = 0
		}
		return c.WithOffset(offset)
	}
	return c
}
