package danmaku

import (
	"bytes"
	"context"
	"danmaku-sync/internal/config"
	"danmaku-sync/internal/utils"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"
)

const managerUtilC = "manager_util"

// PlatformClient 各平台共用的http客户端
type PlatformClient struct {
	Cookie     string
	HttpClient *http.Client
	// Limiter 为nil时不限速
	Limiter *rate.Limiter
}

// MergeDanmaku 按时间桶合并相同内容的弹幕 没有时间的弹幕原样保留
func MergeDanmaku(dms []Comment, mergedInMills int64) []Comment {
	var start = time.Now()
	utils.DebugLog(managerUtilC, "danmaku size merge start", "size", len(dms))
	if mergedInMills <= 0 || len(dms) == 0 {
		return dms
	}
	var maxOffset int64
	for _, d := range dms {
		if d.HasOffset && d.Offset.Milliseconds() > maxOffset {
			maxOffset = d.Offset.Milliseconds()
		}
	}
	initBuckets := maxOffset/mergedInMills + 1
	buckets := make(map[int64]map[string]bool, initBuckets)
	var result = make([]Comment, 0, len(dms))

	for _, d := range dms {
		if !d.HasOffset {
			result = append(result, d)
			continue
		}
		bid := d.Offset.Milliseconds() / mergedInMills // 所属时间桶

		if _, ok := buckets[bid]; !ok {
			buckets[bid] = make(map[string]bool, int64(len(dms))/initBuckets+1)
		}

		// 检查当前桶和前一个桶是否出现过（跨桶重复处理）
		if buckets[bid][d.Text] || buckets[bid-1][d.Text] {
			continue
		}

		result = append(result, d)
		buckets[bid][d.Text] = true
	}

	utils.DebugLog(managerUtilC, "danmaku size merge end", "size", len(result), "cost_ms", time.Since(start).Milliseconds())

	return result
}

// GenDandanAttribute 生成dandan api的p字段 时间,模式,颜色,用户id
func (c Comment) GenDandanAttribute(text ...string) string {
	var attr = []string{
		strconv.FormatFloat(float64(c.Offset.Milliseconds())/1000, 'f', 2, 64),
		strconv.FormatInt(int64(c.Position.DandanMode()), 10),
		strconv.FormatInt(int64(c.ARGBColor&0xFFFFFF), 10),
		// 部分播放器要求该字段必须返回且为int
		"0",
	}
	attr = append(attr, text...)
	return strings.Join(attr, ",")
}

const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

func (p *PlatformClient) DoReq(req *http.Request) (*http.Response, error) {
	ua := config.GetConfig().UA
	if ua == "" {
		ua = defaultUA
	}
	req.Header.Set("User-Agent", ua)
	if p.Cookie != "" && req.Header.Get("Cookie") == "" {
		req.Header.Set("Cookie", p.Cookie)
	}
	// 手动声明后需要自己解压 见 ReadBody
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br, zstd")
	}
	if p.Limiter != nil {
		if err := p.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	client := p.HttpClient
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// ReadBody 按 Content-Encoding 解压响应
func ReadBody(resp *http.Response) ([]byte, error) {
	defer utils.SafeClose(resp.Body)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return io.ReadAll(brotli.NewReader(resp.Body))
	case "gzip":
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer utils.SafeClose(reader)
		return io.ReadAll(reader)
	case "zstd":
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return io.ReadAll(decoder)
	}
	return io.ReadAll(resp.Body)
}

func (p *PlatformClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *PlatformClient) PostJSON(ctx context.Context, url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *PlatformClient) do(req *http.Request) ([]byte, error) {
	resp, err := p.DoReq(req)
	if err != nil {
		return nil, TransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		utils.SafeClose(resp.Body)
		return nil, TransportError(fmt.Errorf("%s %s status: %d", req.Method, req.URL.Path, resp.StatusCode))
	}
	body, err := ReadBody(resp)
	if err != nil {
		return nil, TransportError(err)
	}
	return body, nil
}

func InitPlatformClient(c *PlatformClient, platform Platform) error {
	conf := config.GetPlatformConfig(string(platform))
	if conf == nil || conf.Name == "" {
		return fmt.Errorf("[%s] is not configured", platform)
	}

	c.Cookie = conf.Cookie
	var timeout = conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeoutInSeconds
	}
	c.HttpClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	if conf.Fingerprint {
		c.HttpClient.Transport = newFingerprintTransport()
		utils.InfoLog(managerUtilC, "browser tls fingerprint enabled", "platform", platform)
	}
	if conf.RatePerSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(conf.RatePerSecond), int(conf.RatePerSecond*2)+1)
	}

	return nil
}

const defaultTimeoutInSeconds = 30
