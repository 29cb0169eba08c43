package danmaku

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	lock     sync.Mutex
	fn       func(req Request) (*Payload, error)
	requests []Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req Request) (*Payload, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.requests = append(f.requests, req)
	return f.fn(req)
}

func (f *fakeFetcher) calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.requests)
}

func (f *fakeFetcher) last() Request {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.requests[len(f.requests)-1]
}

// queue 按顺序返回 用完后重复最后一个
func queue(payloads ...*Payload) func(Request) (*Payload, error) {
	var i int
	return func(Request) (*Payload, error) {
		p := payloads[i]
		if i < len(payloads)-1 {
			i++
		}
		return p, nil
	}
}

type fakeDecoder struct {
	err error
}

func (d fakeDecoder) Decode(p *Payload) ([]Comment, error) {
	records, _ := p.Data.([]Comment)
	return records, d.err
}

func comments(ids ...string) []Comment {
	var result []Comment
	for _, id := range ids {
		result = append(result, NewComment(id, "text "+id))
	}
	return result
}

func payload(token string, ids ...string) *Payload {
	return &Payload{Candidates: []Candidate{{"next": token}}, Data: comments(ids...)}
}

func identities(records []Comment) []string {
	var result []string
	for _, r := range records {
		result = append(result, r.Identity)
	}
	return result
}

func newTestEngine(live bool, fetcher Fetcher, opts ...Option) *Engine {
	watch := &Watch{Continuation: "t0", Live: live}
	return NewEngine(watch, Source{
		Platform:   "test",
		Fetcher:    fetcher,
		Decoder:    fakeDecoder{},
		LiveKeys:   []string{"next"},
		ReplayKeys: []string{"next"},
	}, opts...)
}

func TestDrainPendingIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a", "b"))}
	e := newTestEngine(false, fetcher)

	e.poller.poll(context.Background())

	first := e.DrainPending()
	assert.Equal(t, []string{"a", "b"}, identities(first))
	second := e.DrainPending()
	assert.NotNil(t, second)
	assert.Empty(t, second)
}

func TestOverlappingPayloadsDeliveredOnce(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a", "b"), payload("t2", "b", "c"))}
	e := newTestEngine(true, fetcher)

	e.poller.poll(context.Background())
	e.poller.poll(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, identities(e.DrainPending()))
	assert.Equal(t, "t2", e.cursor.Token())
	assert.Equal(t, "t1", fetcher.last().Token)
}

func TestBackwardSeekResetsDedup(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(false, fetcher)
	ctx := context.Background()

	e.ReportPosition(5000)
	e.poller.poll(ctx)
	require.Equal(t, 1, fetcher.calls())
	assert.Equal(t, int64(5000), fetcher.last().OffsetMs)
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))

	e.ReportPosition(1000)
	e.poller.poll(ctx)
	assert.Equal(t, 1, fetcher.calls(), "tick after seek must not fetch")
	assert.Zero(t, e.dedup.Len())

	e.poller.poll(ctx)
	require.Equal(t, 2, fetcher.calls())
	assert.Equal(t, int64(1000), fetcher.last().OffsetMs)
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))
}

func TestSeekDuringFetchResetsDedup(t *testing.T) {
	var e *Engine
	var seeked bool
	fetcher := &fakeFetcher{fn: func(req Request) (*Payload, error) {
		// 拉取还没返回时用户已经拖回前面
		if !seeked {
			seeked = true
			e.ReportPosition(1000)
		}
		return payload("t1", "a"), nil
	}}
	e = newTestEngine(false, fetcher)
	ctx := context.Background()

	e.ReportPosition(5000)
	e.poller.poll(ctx)
	require.Equal(t, 1, fetcher.calls())
	assert.Equal(t, int64(5000), fetcher.last().OffsetMs)
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))
	assert.Equal(t, int64(1000), e.tracker.Current())

	e.poller.poll(ctx)
	assert.Equal(t, 1, fetcher.calls(), "tick after seek must not fetch")
	assert.Zero(t, e.dedup.Len())

	e.poller.poll(ctx)
	require.Equal(t, 2, fetcher.calls())
	assert.Equal(t, int64(1000), fetcher.last().OffsetMs)
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))
}

func TestSmallRewindWithinTolerance(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(false, fetcher)

	e.ReportPosition(5000)
	e.poller.poll(context.Background())
	e.ReportPosition(4500)

	assert.False(t, e.tracker.ConsumeSkip())
}

func TestPausedReplayDoesNotFetch(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(false, fetcher)
	ctx := context.Background()

	e.ReportPosition(2000)
	e.poller.poll(ctx)
	require.Equal(t, 1, fetcher.calls())

	e.ReportPosition(2000)
	e.poller.poll(ctx)
	assert.Equal(t, 1, fetcher.calls())

	e.ReportPosition(3000)
	e.poller.poll(ctx)
	assert.Equal(t, 2, fetcher.calls())
}

func TestLiveAlwaysFetches(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1"))}
	e := newTestEngine(true, fetcher)

	e.poller.poll(context.Background())
	e.poller.poll(context.Background())

	assert.Equal(t, 2, fetcher.calls())
}

func TestUnknownPositionIgnored(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(false, fetcher)

	e.ReportPosition(5000)
	e.poller.poll(context.Background())
	e.ReportPosition(UnknownPosition)

	assert.Equal(t, int64(5000), e.tracker.Current())
	assert.False(t, e.tracker.ConsumeSkip())
}

func TestDisabledSessionIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := NewEngine(&Watch{Disabled: true, Continuation: "t0", Live: true}, Source{
		Platform: "test",
		Fetcher:  fetcher,
		Decoder:  fakeDecoder{},
		LiveKeys: []string{"next"},
	})

	assert.True(t, e.IsDisabled())
	assert.False(t, e.IsLive())

	e.Start()
	assert.False(t, e.Running())
	e.Reconnect()
	assert.False(t, e.Running())

	e.poller.poll(context.Background())
	assert.Zero(t, fetcher.calls())

	e.buffer.Append(comments("x")...)
	assert.Empty(t, e.DrainPending())
	assert.Zero(t, e.buffer.Len())
}

func TestEmptyContinuationDisables(t *testing.T) {
	e := NewEngine(&Watch{Live: false}, Source{Fetcher: &fakeFetcher{}, Decoder: fakeDecoder{}})
	assert.True(t, e.IsDisabled())
	assert.Equal(t, Disabled, e.Mode())
}

func TestTransportErrorSwallowed(t *testing.T) {
	var failed bool
	fetcher := &fakeFetcher{fn: func(Request) (*Payload, error) {
		if !failed {
			failed = true
			return nil, TransportError(errors.New("connection reset"))
		}
		return payload("t1", "a"), nil
	}}
	e := newTestEngine(false, fetcher)

	e.ReportPosition(1000)
	e.poller.poll(context.Background())
	assert.Empty(t, e.DrainPending())
	assert.Equal(t, "t0", e.cursor.Token())
	assert.False(t, e.IsDisabled())

	// 失败后进度没有提交 暂停状态下依然会重试
	e.poller.poll(context.Background())
	assert.Equal(t, 2, fetcher.calls())
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))
	assert.Equal(t, "t1", e.cursor.Token())
}

func TestDisabledByUpstream(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(Request) (*Payload, error) {
		return nil, ErrDisabled
	}}
	e := newTestEngine(true, fetcher)
	e.Start()
	defer e.Stop()

	e.poller.poll(context.Background())

	assert.True(t, e.IsDisabled())
	assert.False(t, e.Running())
	assert.Empty(t, e.DrainPending())
}

func TestNoContinuationKeepsCursor(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(&Payload{Data: comments("a")}, payload("t1", "a"))}
	e := newTestEngine(true, fetcher)

	e.poller.poll(context.Background())
	assert.Equal(t, "t0", e.cursor.Token())
	assert.Empty(t, e.DrainPending())

	e.poller.poll(context.Background())
	assert.Equal(t, "t0", fetcher.last().Token)
	assert.Equal(t, "t1", e.cursor.Token())
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))
}

func TestDecodeErrorKeepsSiblings(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a", "", "b"))}
	e := NewEngine(&Watch{Continuation: "t0", Live: true}, Source{
		Fetcher:  fetcher,
		Decoder:  fakeDecoder{err: DecodeError("bad frame")},
		LiveKeys: []string{"next"},
	})

	e.poller.poll(context.Background())

	assert.Equal(t, []string{"a", "b"}, identities(e.DrainPending()))
}

func TestCancelledTickDoesNotMutate(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(true, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.poller.poll(ctx)

	assert.Equal(t, 1, fetcher.calls())
	assert.Equal(t, "t0", e.cursor.Token())
	assert.Empty(t, e.DrainPending())
	assert.Zero(t, e.dedup.Len())
}

func TestLiveOffsetStamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	started := now.Add(-3 * time.Second)
	decoded := NewComment("b", "with offset").WithOffset(20 * time.Second)
	fetcher := &fakeFetcher{fn: queue(&Payload{
		Candidates: []Candidate{{"next": "t1"}},
		Data:       []Comment{NewComment("a", "plain"), decoded},
	})}
	e := NewEngine(&Watch{Continuation: "t0", Live: true, StartedAt: started}, Source{
		Fetcher:  fetcher,
		Decoder:  fakeDecoder{},
		LiveKeys: []string{"next"},
	}, WithClock(func() time.Time { return now }))

	e.poller.poll(context.Background())
	records := e.DrainPending()
	require.Len(t, records, 2)

	assert.True(t, records[0].IsLive)
	assert.True(t, records[0].HasOffset)
	assert.Equal(t, 3*time.Second, records[0].Offset)
	assert.Equal(t, 20*time.Second, records[1].Offset)
	assert.True(t, e.IsLive())
}

func TestReplayKeepsDecodedOffset(t *testing.T) {
	record := NewComment("a", "replay").WithOffset(42 * time.Second)
	fetcher := &fakeFetcher{fn: queue(&Payload{Candidates: []Candidate{{"next": "t1"}}, Data: []Comment{record, NewComment("b", "no offset")}})}
	e := newTestEngine(false, fetcher)

	e.poller.poll(context.Background())
	records := e.DrainPending()
	require.Len(t, records, 2)

	assert.False(t, records[0].IsLive)
	assert.Equal(t, 42*time.Second, records[0].Offset)
	assert.False(t, records[1].HasOffset)
	assert.False(t, e.IsLive())
}

func TestStartStopReconnect(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a", "b"))}
	e := NewEngine(&Watch{Continuation: "t0", Live: true}, Source{
		Fetcher:  fetcher,
		Decoder:  fakeDecoder{},
		Period:   10 * time.Millisecond,
		LiveKeys: []string{"next"},
	})

	e.Start()
	e.Start()
	assert.True(t, e.Running())
	assert.Eventually(t, func() bool { return e.buffer.Len() == 2 }, time.Second, 5*time.Millisecond)

	e.Stop()
	assert.False(t, e.Running())
	calls := fetcher.calls()
	assert.Equal(t, []string{"a", "b"}, identities(e.DrainPending()))

	e.Reconnect()
	assert.True(t, e.Running())
	assert.Eventually(t, func() bool { return fetcher.calls() > calls+1 }, time.Second, 5*time.Millisecond)
	e.Stop()

	// 重连后去重状态保留
	assert.Empty(t, e.DrainPending())
	assert.Equal(t, "t1", e.cursor.Token())
}

func TestClearMappingState(t *testing.T) {
	fetcher := &fakeFetcher{fn: queue(payload("t1", "a"))}
	e := newTestEngine(true, fetcher)

	e.poller.poll(context.Background())
	e.poller.poll(context.Background())
	assert.Len(t, e.DrainPending(), 1)

	e.ClearMappingState()
	e.poller.poll(context.Background())
	assert.Len(t, e.DrainPending(), 1)
}

type discoverDecoder struct {
	lock       sync.Mutex
	discovered []*Payload
	frames     []Comment
}

func (d *discoverDecoder) Discover(_ context.Context, p *Payload) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.discovered = append(d.discovered, p)
	d.frames = append(d.frames, p.Data.([]Comment)...)
}

func (d *discoverDecoder) Decode(*Payload) ([]Comment, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]Comment{}, d.frames...), nil
}

func TestDiscoveryTaskOwnsCursor(t *testing.T) {
	decoder := &discoverDecoder{}
	view := &fakeFetcher{fn: queue(payload("at-1", "a"), payload("at-2", "a", "b"))}
	frames := &fakeFetcher{fn: queue(&Payload{})}
	e := NewEngine(&Watch{Continuation: "now", Live: true}, Source{
		Fetcher:   frames,
		Decoder:   decoder,
		Discovery: &Discovery{Fetcher: view},
		LiveKeys:  []string{"next"},
	})
	assert.Equal(t, defaultDiscoveryPeriod, e.poller.discovery.Period)
	ctx := context.Background()

	e.poller.poll(ctx)
	assert.Empty(t, e.DrainPending())
	assert.Equal(t, "now", e.cursor.Token(), "message task must not advance the cursor")

	e.poller.discover(ctx)
	assert.Equal(t, "now", view.last().Token)
	assert.Equal(t, "at-1", e.cursor.Token())
	e.poller.poll(ctx)
	assert.Equal(t, []string{"a"}, identities(e.DrainPending()))

	e.poller.discover(ctx)
	assert.Equal(t, "at-2", e.cursor.Token())
	e.poller.poll(ctx)
	assert.Equal(t, []string{"b"}, identities(e.DrainPending()))
}

func TestPausedReplaySkipsDiscovery(t *testing.T) {
	view := &fakeFetcher{fn: queue(payload("at-1"))}
	frames := &fakeFetcher{fn: queue(&Payload{})}
	e := NewEngine(&Watch{Continuation: "100"}, Source{
		Fetcher:    frames,
		Decoder:    &discoverDecoder{},
		Discovery:  &Discovery{Fetcher: view},
		ReplayKeys: []string{"next"},
	})
	ctx := context.Background()

	e.ReportPosition(2000)
	e.poller.discover(ctx)
	require.Equal(t, 1, view.calls())

	e.poller.poll(ctx)
	e.poller.discover(ctx)
	assert.Equal(t, 1, view.calls(), "paused replay must not discover")

	e.ReportPosition(3000)
	e.poller.discover(ctx)
	assert.Equal(t, 2, view.calls())
}

type rewindFetcher struct {
	fakeFetcher
	rewinds int
}

func (f *rewindFetcher) Rewind() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.rewinds++
}

func TestSeekRewindsLocalLog(t *testing.T) {
	fetcher := &rewindFetcher{fakeFetcher: fakeFetcher{fn: queue(payload("t1", "a"))}}
	e := newTestEngine(false, fetcher)
	ctx := context.Background()

	e.ReportPosition(5000)
	e.poller.poll(ctx)
	assert.Zero(t, fetcher.rewinds)

	e.ReportPosition(1000)
	e.poller.poll(ctx)
	assert.Equal(t, 1, fetcher.rewinds)
}
