package danmaku

import (
	"context"
	"danmaku-sync/internal/utils"
	"io"
	"time"
)

const (
	defaultPeriod          = time.Second
	defaultDiscoveryPeriod = 10 * time.Second
)

// Watch 观看页的初始信息
type Watch struct {
	Disabled     bool
	Continuation string
	Live         bool
	StartedAt    time.Time
}

type Watcher interface {
	Watch(ctx context.Context, id string) (*Watch, error)
}

// Source 平台提供的拉取和解析实现
type Source struct {
	Platform   Platform
	Fetcher    Fetcher
	Decoder    Decoder
	Period     time.Duration
	Discovery  *Discovery
	LiveKeys   []string
	ReplayKeys []string
}

type engineOptions struct {
	now func() time.Time
}

type Option func(*engineOptions)

func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		o.now = now
	}
}

// Engine 一次观看的弹幕同步 所有状态只属于这一个会话
type Engine struct {
	platform Platform
	live     bool

	cursor  *Cursor
	tracker *PositionTracker
	dedup   *DedupStore
	buffer  *Buffer
	poller  *Poller
}

func NewEngine(watch *Watch, src Source, opts ...Option) *Engine {
	o := &engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	mode := Replay
	if watch.Live {
		mode = Live
	}
	token := watch.Continuation
	if watch.Disabled {
		token = ""
	}
	period := src.Period
	if period <= 0 {
		period = defaultPeriod
	}
	startedAt := watch.StartedAt
	if startedAt.IsZero() {
		startedAt = o.now()
	}
	discovery := src.Discovery
	if discovery != nil && discovery.Period <= 0 {
		discovery = &Discovery{Fetcher: discovery.Fetcher, Period: defaultDiscoveryPeriod}
	}

	e := &Engine{
		platform: src.Platform,
		live:     watch.Live,
		cursor:   NewCursor(token, mode, src.LiveKeys, src.ReplayKeys),
		tracker:  NewPositionTracker(period, startedAt, o.now),
		dedup:    NewDedupStore(),
		buffer:   &Buffer{},
	}
	e.poller = &Poller{
		component: string(src.Platform),
		fetcher:   src.Fetcher,
		decoder:   src.Decoder,
		period:    period,
		discovery: discovery,
		cursor:    e.cursor,
		tracker:   e.tracker,
		dedup:     e.dedup,
		buffer:    e.buffer,
	}
	return e
}

func (e *Engine) Start() {
	if e.poller.Start() {
		utils.InfoLog(string(e.platform), "danmaku sync started", "mode", e.cursor.Mode().String())
	}
}

// Stop 断开连接 保留cursor和去重状态以便 Reconnect
func (e *Engine) Stop() {
	e.poller.Stop()
}

// Close 结束会话并释放解析器持有的资源
func (e *Engine) Close() {
	e.poller.Stop()
	if closer, ok := e.poller.decoder.(io.Closer); ok {
		utils.SafeClose(closer)
	}
}

func (e *Engine) Reconnect() {
	if e.poller.Start() {
		utils.InfoLog(string(e.platform), "danmaku sync reconnected", "mode", e.cursor.Mode().String())
	}
}

func (e *Engine) ReportPosition(offsetMs int64) {
	e.tracker.Report(offsetMs)
}

// DrainPending 取走所有待显示的弹幕 不做任何IO
func (e *Engine) DrainPending() []Comment {
	items := e.buffer.Drain()
	if e.IsDisabled() {
		return []Comment{}
	}
	return items
}

func (e *Engine) IsLive() bool {
	return e.live && !e.IsDisabled()
}

func (e *Engine) IsDisabled() bool {
	return e.cursor.Disabled()
}

// ClearMappingState 外部已知显示范围变化时重置去重
func (e *Engine) ClearMappingState() {
	e.dedup.Clear()
}

func (e *Engine) Running() bool {
	return e.poller.Running()
}

func (e *Engine) Platform() Platform {
	return e.platform
}

func (e *Engine) Mode() Mode {
	return e.cursor.Mode()
}
