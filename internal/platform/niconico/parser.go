package niconico

import (
	"context"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/utils"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

var segmentURIRegex = regexp.MustCompile(`https://mpn\.live\.nicovideo\.jp/data/segment/v4/[A-Za-z0-9_\-/.]+`)

// 分段在上游保留的时间内不会重复拉取
const segmentTTL = 10 * time.Minute

// segmentParser 发现并拉取分段 解析出的弹幕帧只追加不删除
type segmentParser struct {
	common  *danmaku.PlatformClient
	fetched *ristretto.Cache[string, struct{}]

	lock   sync.Mutex
	frames [][]byte
}

func newSegmentParser(common *danmaku.PlatformClient) (*segmentParser, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &segmentParser{common: common, fetched: cache}, nil
}

// Discover 每个新分段启动一个协程拉取 不等待结果
func (p *segmentParser) Discover(ctx context.Context, payload *danmaku.Payload) {
	data, ok := payload.Data.([]byte)
	if !ok {
		return
	}
	var started = make(map[string]bool)
	for _, uri := range segmentURIs(data) {
		if started[uri] {
			continue
		}
		if _, found := p.fetched.Get(uri); found {
			continue
		}
		started[uri] = true
		p.fetched.SetWithTTL(uri, struct{}{}, 1, segmentTTL)
		go p.fetchSegment(ctx, uri)
	}
	p.fetched.Wait()
	if len(started) > 0 {
		utils.DebugLog(string(danmaku.NicoNico), "segments discovered", "size", len(started))
	}
}

func (p *segmentParser) fetchSegment(ctx context.Context, uri string) {
	body, err := p.common.Get(ctx, uri)
	if err != nil {
		// 下次发现时重试
		p.fetched.Del(uri)
		utils.DebugLog(string(danmaku.NicoNico), "fetch segment failed", "uri", uri, "err", err)
		return
	}
	frames := splitFrames(body)
	p.lock.Lock()
	p.frames = append(p.frames, frames...)
	p.lock.Unlock()
}

// since 返回 from 之后的所有帧和新的位置
func (p *segmentParser) since(from int) ([][]byte, int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if from >= len(p.frames) {
		return nil, len(p.frames)
	}
	return append([][]byte{}, p.frames[from:]...), len(p.frames)
}

func (p *segmentParser) Decode(payload *danmaku.Payload) ([]danmaku.Comment, error) {
	frames, ok := payload.Data.([][]byte)
	if !ok {
		return nil, danmaku.DecodeError("unexpected payload %T", payload.Data)
	}
	var result = make([]danmaku.Comment, 0, len(frames))
	var errs []error
	for _, frame := range frames {
		c, err := decodeFrame(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, c)
	}
	return result, errors.Join(errs...)
}

func (p *segmentParser) Close() error {
	p.fetched.Close()
	return nil
}

// frameReader 消息任务的 Fetcher 只读取已经拉取到的帧 不做网络请求
// 停止后立即重连时新旧两个 tick 可能同时读取
type frameReader struct {
	parser *segmentParser
	lock   sync.Mutex
	next   int
}

func (r *frameReader) Fetch(_ context.Context, _ danmaku.Request) (*danmaku.Payload, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	frames, next := r.parser.since(r.next)
	r.next = next
	return &danmaku.Payload{Data: frames}, nil
}

// Rewind 跳转后从头重新读取 已经显示过的由去重过滤
func (r *frameReader) Rewind() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.next = 0
}
