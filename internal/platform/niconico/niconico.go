package niconico

import (
	"context"
	"danmaku-sync/internal/config"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/utils"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const defaultBaseURL = "https://live.nicovideo.jp"

const (
	// 实时直播从最新位置开始
	liveAt  = "now"
	onAir   = "ON_AIR"
	atParam = "at"
	nextKey = "next"
)

var nextKeys = []string{nextKey}

var (
	programIdRegex    = regexp.MustCompile(`lv\d+`)
	embeddedDataRegex = regexp.MustCompile(`id="embedded-data"\s+data-props="([^"]+)"`)
	viewURIRegex      = regexp.MustCompile(`https://mpn\.live\.nicovideo\.jp/api/view/v4/[A-Za-z0-9_\-/.]+`)
)

type client struct {
	common          *danmaku.PlatformClient
	baseURL         string
	period          time.Duration
	discoveryPeriod time.Duration
}

func init() {
	danmaku.RegisterInitializer(&client{})
}

func (c *client) Init() error {
	c.common = &danmaku.PlatformClient{}
	if err := danmaku.InitPlatformClient(c.common, danmaku.NicoNico); err != nil {
		return err
	}
	conf := config.GetPlatformConfig(string(danmaku.NicoNico))
	c.baseURL = defaultBaseURL
	c.period = time.Duration(conf.PeriodMills) * time.Millisecond
	c.discoveryPeriod = time.Duration(conf.DiscoveryPeriodMills) * time.Millisecond
	danmaku.RegisterService(c)
	return nil
}

func (c *client) Platform() danmaku.Platform {
	return danmaku.NicoNico
}

func (c *client) NewEngine(ctx context.Context, id string) (*danmaku.Engine, error) {
	page, err := c.watchPage(ctx, id)
	if err != nil {
		return nil, err
	}
	utils.InfoLog(string(danmaku.NicoNico), "watch page loaded", "id", id, "live", page.watch.Live, "disabled", page.watch.Disabled)

	parser, err := newSegmentParser(c.common)
	if err != nil {
		return nil, err
	}
	return danmaku.NewEngine(page.watch, danmaku.Source{
		Platform: danmaku.NicoNico,
		Fetcher:  &frameReader{parser: parser},
		Decoder:  parser,
		Period:   c.period,
		Discovery: &danmaku.Discovery{
			Fetcher: newViewFetcher(c.common, page),
			Period:  c.discoveryPeriod,
		},
		LiveKeys:   nextKeys,
		ReplayKeys: nextKeys,
	}), nil
}

type watchPage struct {
	watch   *danmaku.Watch
	viewURI string
}

func (c *client) watchPage(ctx context.Context, id string) (*watchPage, error) {
	programId := programIdRegex.FindString(id)
	if programId == "" {
		return nil, fmt.Errorf("invalid niconico program id: %s", id)
	}
	body, err := c.common.Get(ctx, c.baseURL+"/watch/"+programId)
	if err != nil {
		return nil, err
	}
	return parseWatchPage(body)
}

func parseWatchPage(body []byte) (*watchPage, error) {
	m := embeddedDataRegex.FindSubmatch(body)
	if m == nil {
		return nil, errors.New("embedded data not found")
	}
	props := html.UnescapeString(string(m[1]))
	var data embeddedData
	if err := json.Unmarshal([]byte(props), &data); err != nil {
		return nil, fmt.Errorf("parse embedded data: %w", err)
	}

	program := data.Program
	watch := &danmaku.Watch{Live: program.Status == onAir}
	begin := program.VposBaseTime
	if begin <= 0 {
		begin = program.BeginTime
	}
	if begin > 0 {
		watch.StartedAt = time.Unix(begin, 0)
	}

	page := &watchPage{watch: watch, viewURI: viewURIRegex.FindString(props)}
	if page.viewURI == "" {
		watch.Disabled = true
		return page, nil
	}
	// 回放从开播时间开始读取
	watch.Continuation = liveAt
	if !watch.Live && begin > 0 {
		watch.Continuation = strconv.FormatInt(begin, 10)
	}
	return page, nil
}

// 回放进度和 view 位置相差超过这个范围时直接跳到播放位置
const defaultReplayWindow = 10 * time.Second

// viewFetcher 读取 view 流 获得分段地址和下一次的 at
type viewFetcher struct {
	common *danmaku.PlatformClient
	uri    string
	// 回放的 vpos 起点 unix 秒
	begin  int64
	window int64
}

func newViewFetcher(common *danmaku.PlatformClient, page *watchPage) *viewFetcher {
	v := &viewFetcher{common: common, uri: page.viewURI, window: int64(defaultReplayWindow / time.Second)}
	if !page.watch.StartedAt.IsZero() {
		v.begin = page.watch.StartedAt.Unix()
	}
	return v
}

func (v *viewFetcher) Fetch(ctx context.Context, req danmaku.Request) (*danmaku.Payload, error) {
	at := req.Token
	if req.Mode == danmaku.Replay {
		at = v.replayAt(req.Token, req.OffsetMs)
	}
	body, err := v.common.Get(ctx, v.uri+"?"+atParam+"="+url.QueryEscape(at))
	if err != nil {
		return nil, err
	}
	payload := &danmaku.Payload{Data: body}
	if at, ok := nextAt(body); ok {
		payload.Candidates = []danmaku.Candidate{{nextKey: strconv.FormatUint(at, 10)}}
	}
	return payload, nil
}

// replayAt 回放时 view 位置跟随播放进度 跳转或者落后太多时重新定位
func (v *viewFetcher) replayAt(token string, offsetMs int64) string {
	if v.begin <= 0 || offsetMs < 0 {
		return token
	}
	wanted := v.begin + offsetMs/1000
	current, err := strconv.ParseInt(token, 10, 64)
	if err != nil || current-wanted > v.window || wanted-current > v.window {
		return strconv.FormatInt(wanted, 10)
	}
	return token
}
