package danmaku

import (
	"fmt"
	"sync"
)

type Mode int

const (
	Live Mode = iota
	Replay
	Disabled
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Replay:
		return "replay"
	}
	return "disabled"
}

// Candidate 一个响应里的continuation对象 key为continuation类型 value为token
type Candidate map[string]string

// 回放时上游返回两个continuation 第一个是重复的
const replayCandidateIndex = 1

// Cursor 下次拉取用的token 只由轮询协程修改
type Cursor struct {
	lock       sync.RWMutex
	token      string
	mode       Mode
	liveKeys   []string
	replayKeys []string
}

// NewCursor token为空时直接进入 Disabled
func NewCursor(token string, mode Mode, liveKeys, replayKeys []string) *Cursor {
	c := &Cursor{
		token:      token,
		mode:       mode,
		liveKeys:   liveKeys,
		replayKeys: replayKeys,
	}
	if token == "" {
		c.mode = Disabled
	}
	return c
}

func (c *Cursor) Token() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.token
}

func (c *Cursor) Mode() Mode {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.mode
}

func (c *Cursor) Disabled() bool {
	return c.Mode() == Disabled
}

// Disable 终止状态 不可恢复
func (c *Cursor) Disable() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.token = ""
	c.mode = Disabled
}

// Advance 从响应的候选continuation中选出下一个token 失败时保留原token
func (c *Cursor) Advance(candidates []Candidate) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	var token string
	switch c.mode {
	case Disabled:
		return ErrDisabled
	case Live:
		// 直播只看第一个候选 按key优先级查找
		if len(candidates) == 0 {
			break
		}
		for _, key := range c.liveKeys {
			if v := candidates[0][key]; v != "" {
				token = v
				break
			}
		}
	case Replay:
		if len(candidates) == 0 {
			break
		}
		candidate := candidates[0]
		if len(candidates) == 2 {
			candidate = candidates[replayCandidateIndex]
		}
		for _, key := range c.replayKeys {
			if v := candidate[key]; v != "" {
				token = v
				break
			}
		}
	}

	if token == "" {
		return fmt.Errorf("%w: mode %s, %d candidates", ErrNoContinuation, c.mode, len(candidates))
	}
	c.token = token
	return nil
}
