package danmaku

import (
	"context"
	"danmaku-sync/internal/utils"
	"errors"
	"sync"
	"time"
)

// Request 一次拉取需要的参数 由当前cursor和播放进度构造
type Request struct {
	Token    string
	Mode     Mode
	OffsetMs int64
}

// Payload 一次拉取的结果 Data 的具体类型由平台自己约定
type Payload struct {
	Candidates []Candidate
	Data       any
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Payload, error)
}

// Decoder 解析单个payload 返回error时已解析出的弹幕依然有效
type Decoder interface {
	Decode(payload *Payload) ([]Comment, error)
}

// Discoverer 需要额外发现上游分段的解析器实现
type Discoverer interface {
	Discover(ctx context.Context, payload *Payload)
}

// Rewinder 从本地日志读取的 Fetcher 跳转后需要从头读取
type Rewinder interface {
	Rewind()
}

// Discovery 低频的上游发现任务 存在时由它推进cursor
type Discovery struct {
	Fetcher Fetcher
	Period  time.Duration
}

type Poller struct {
	component string
	fetcher   Fetcher
	decoder   Decoder
	period    time.Duration
	discovery *Discovery

	cursor  *Cursor
	tracker *PositionTracker
	dedup   *DedupStore
	buffer  *Buffer

	lock   sync.Mutex
	cancel context.CancelFunc
}

// Start 已经在运行或者已经 Disabled 时不做任何事
func (p *Poller) Start() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.cancel != nil || p.cursor.Disabled() {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go p.run(ctx, p.period, false, p.poll)
	if p.discovery != nil {
		go p.run(ctx, p.discovery.Period, true, p.discover)
	}
	return true
}

// Stop 只取消定时任务 不清理任何状态
func (p *Poller) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) Running() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, period time.Duration, immediate bool, tick func(ctx context.Context)) {
	if immediate {
		tick(ctx)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	mode := p.cursor.Mode()
	if mode == Disabled {
		return
	}
	// 暂停中的回放没有新数据
	if mode == Replay && p.tracker.Stalled() {
		return
	}
	if p.tracker.ConsumeSkip() {
		p.dedup.Clear()
		if r, ok := p.fetcher.(Rewinder); ok {
			r.Rewind()
		}
		utils.DebugLog(p.component, "seek detected, dedup state cleared", "position", p.tracker.Current())
		return
	}

	offset := p.tracker.Current()
	payload, err := p.fetcher.Fetch(ctx, Request{Token: p.cursor.Token(), Mode: mode, OffsetMs: offset})
	if err != nil {
		p.fetchFailed(err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if p.discovery == nil {
		if err := p.cursor.Advance(payload.Candidates); err != nil {
			utils.WarnLog(p.component, "cursor not advanced, retry next tick", "err", err)
			return
		}
	}

	records, err := p.decoder.Decode(payload)
	if err != nil {
		utils.DebugLog(p.component, "decode error", "err", err, "decoded", len(records))
	}
	if ctx.Err() != nil {
		return
	}

	var added = make([]Comment, 0, len(records))
	for _, r := range records {
		if r.Identity == "" || !p.dedup.Add(r.Identity) {
			continue
		}
		added = append(added, p.tracker.Stamp(r, mode))
	}
	p.buffer.Append(added...)
	p.tracker.Commit(offset)

	if len(added) > 0 {
		utils.DebugLog(p.component, "new danmaku", "size", len(added), "position", offset)
	}
}

func (p *Poller) discover(ctx context.Context) {
	mode := p.cursor.Mode()
	if mode == Disabled {
		return
	}
	if mode == Replay && p.tracker.Stalled() {
		return
	}
	payload, err := p.discovery.Fetcher.Fetch(ctx, Request{Token: p.cursor.Token(), Mode: mode, OffsetMs: p.tracker.Current()})
	if err != nil {
		p.fetchFailed(err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err := p.cursor.Advance(payload.Candidates); err != nil {
		utils.WarnLog(p.component, "cursor not advanced, retry next tick", "err", err)
		return
	}
	if d, ok := p.decoder.(Discoverer); ok {
		d.Discover(ctx, payload)
	}
}

// fetchFailed 网络错误等下个周期重试 只有 ErrDisabled 会终止会话
func (p *Poller) fetchFailed(err error) {
	if errors.Is(err, ErrDisabled) {
		utils.InfoLog(p.component, "danmaku disabled by upstream", "err", err)
		p.cursor.Disable()
		p.Stop()
		return
	}
	utils.DebugLog(p.component, "fetch failed, retry next tick", "err", err)
}
