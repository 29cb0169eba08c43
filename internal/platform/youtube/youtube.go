package youtube

import (
	"context"
	"danmaku-sync/internal/config"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/utils"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://www.youtube.com"
	defaultClientVersion = "2.20250101.00.00"
)

var (
	// 实时弹幕支持的continuation 其余两种只在回放中出现
	liveKeys = []string{"timedContinuationData", "invalidationContinuationData"}
	// 回放优先使用带进度的 seek continuation
	replayKeys = []string{"playerSeekContinuationData", "liveChatReplayContinuationData"}
)

var (
	videoIdRegex        = regexp.MustCompile(`(?:v=|youtu\.be/|/live/|/shorts/)([A-Za-z0-9_-]{11})`)
	streamedAgoRegex    = regexp.MustCompile(`Streamed .* ago`)
	startTimestampRegex = regexp.MustCompile(`"startTimestamp":"([^"]+)"`)
	disabledMarkers     = []string{
		"Chat is disabled for this live stream",
		"Live chat replay is not available for this video",
		"Chat replay is not available for this video",
	}
)

type client struct {
	common        *danmaku.PlatformClient
	baseURL       string
	clientVersion string
	period        time.Duration
}

func init() {
	danmaku.RegisterInitializer(&client{})
}

func (c *client) Init() error {
	c.common = &danmaku.PlatformClient{}
	if err := danmaku.InitPlatformClient(c.common, danmaku.YouTube); err != nil {
		return err
	}
	conf := config.GetPlatformConfig(string(danmaku.YouTube))
	c.baseURL = defaultBaseURL
	c.clientVersion = conf.ClientVersion
	if c.clientVersion == "" {
		c.clientVersion = defaultClientVersion
	}
	c.period = time.Duration(conf.PeriodMills) * time.Millisecond
	danmaku.RegisterService(c)
	return nil
}

func (c *client) Platform() danmaku.Platform {
	return danmaku.YouTube
}

func (c *client) NewEngine(ctx context.Context, id string) (*danmaku.Engine, error) {
	watch, err := c.Watch(ctx, id)
	if err != nil {
		return nil, err
	}
	utils.InfoLog(string(danmaku.YouTube), "watch page loaded", "id", id, "live", watch.Live, "disabled", watch.Disabled)
	return danmaku.NewEngine(watch, danmaku.Source{
		Platform:   danmaku.YouTube,
		Fetcher:    c,
		Decoder:    &chatParser{startedAt: watch.StartedAt},
		Period:     c.period,
		LiveKeys:   liveKeys,
		ReplayKeys: replayKeys,
	}), nil
}

// Watch 读取观看页 判断是否直播以及弹幕是否可用
func (c *client) Watch(ctx context.Context, id string) (*danmaku.Watch, error) {
	body, err := c.common.Get(ctx, c.baseURL+"/watch?v="+videoId(id))
	if err != nil {
		return nil, err
	}
	return parseWatchPage(body)
}

func (c *client) Fetch(ctx context.Context, req danmaku.Request) (*danmaku.Payload, error) {
	endpoint := "get_live_chat"
	if req.Mode == danmaku.Replay {
		endpoint = "get_live_chat_replay"
	}
	api := fmt.Sprintf("%s/youtubei/v1/live_chat/%s?prettyPrint=false", c.baseURL, endpoint)
	data, err := c.common.PostJSON(ctx, api, newChatRequest(c.clientVersion, req))
	if err != nil {
		return nil, err
	}
	var resp liveChatResponse
	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, danmaku.DecodeError("%s response: %v", endpoint, err)
	}
	return &danmaku.Payload{Candidates: resp.candidates(), Data: &resp}, nil
}

func videoId(id string) string {
	if m := videoIdRegex.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

func parseWatchPage(body []byte) (*danmaku.Watch, error) {
	page := string(body)
	watch := &danmaku.Watch{
		Live: strings.Contains(page, `"isLiveNow":true`),
	}
	if m := startTimestampRegex.FindStringSubmatch(page); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			watch.StartedAt = t
		}
	}

	// 普通视频没有聊天回放
	if !watch.Live && !(strings.Contains(page, "Streamed live on") && streamedAgoRegex.MatchString(page)) {
		watch.Disabled = true
		return watch, nil
	}
	for _, marker := range disabledMarkers {
		if strings.Contains(page, marker) {
			watch.Disabled = true
			return watch, nil
		}
	}

	token, err := initialContinuation(page)
	if err != nil {
		utils.DebugLog(string(danmaku.YouTube), "initial continuation not found", "err", err)
	}
	if token == "" {
		watch.Disabled = true
		return watch, nil
	}
	watch.Continuation = token
	return watch, nil
}

func initialContinuation(page string) (string, error) {
	_, after, found := strings.Cut(page, "var ytInitialData = ")
	if !found {
		return "", errors.New("ytInitialData not found")
	}
	raw, _, _ := strings.Cut(after, ";</script>")

	var data initialData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", err
	}
	continuations := data.Contents.TwoColumnWatchNextResults.ConversationBar.LiveChatRenderer.Continuations
	if len(continuations) == 0 {
		return "", nil
	}
	return continuations[0].ReloadContinuationData.Continuation, nil
}
