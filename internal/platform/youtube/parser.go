package youtube

import (
	"danmaku-sync/internal/danmaku"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 乱码的 □ 字符
var artifactReplacer = strings.NewReplacer("â–¡", "", "□", "")

type chatParser struct {
	startedAt time.Time
}

func (p *chatParser) Decode(payload *danmaku.Payload) ([]danmaku.Comment, error) {
	resp, ok := payload.Data.(*liveChatResponse)
	if !ok {
		return nil, danmaku.DecodeError("unexpected payload %T", payload.Data)
	}

	var result []danmaku.Comment
	var errs []error
	for _, action := range resp.ContinuationContents.LiveChatContinuation.Actions {
		if action.AddChatItemAction != nil {
			// 实时弹幕的时间由轮询时填充
			if c, ok, err := parseItem(action.AddChatItemAction); err != nil {
				errs = append(errs, err)
			} else if ok {
				result = append(result, c)
			}
		}
		replay := action.ReplayChatItemAction
		if replay == nil {
			continue
		}
		videoOffset, offsetErr := strconv.ParseInt(replay.VideoOffsetTimeMsec, 10, 64)
		for _, inner := range replay.Actions {
			if inner.AddChatItemAction == nil {
				continue
			}
			c, ok, err := parseItem(inner.AddChatItemAction)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			if offsetErr == nil {
				c = c.WithOffset(time.Duration(videoOffset) * time.Millisecond)
			} else if offset, ok := p.timestampOffset(inner.AddChatItemAction); ok {
				c = c.WithOffset(offset)
			}
			result = append(result, c)
		}
	}
	return result, errors.Join(errs...)
}

// parseItem 不认识的类型返回 ok=false
func parseItem(action *addChatItemAction) (danmaku.Comment, bool, error) {
	renderer, paid := action.renderer()
	if renderer == nil {
		return danmaku.Comment{}, false, nil
	}
	if renderer.Id == "" {
		return danmaku.Comment{}, false, danmaku.DecodeError("chat item without id, paid: %t", paid)
	}

	text := renderer.text()
	if !paid {
		return danmaku.NewComment(renderer.Id, text), true, nil
	}

	// 没有文字的 SuperChat 不加金额
	if text != "" {
		text = fmt.Sprintf("(%s) ", renderer.PurchaseAmountText.SimpleText) + text
	}
	c := danmaku.NewComment(renderer.Id, text)
	c.Position = danmaku.SuperChat
	if renderer.BodyBackgroundColor != 0 {
		c.ARGBColor = uint32(renderer.BodyBackgroundColor)
	}
	return c, true, nil
}

// timestampOffset 回放缺少 videoOffsetTimeMsec 时用发送时间减去开播时间
func (p *chatParser) timestampOffset(action *addChatItemAction) (time.Duration, bool) {
	renderer, _ := action.renderer()
	if renderer == nil || p.startedAt.IsZero() {
		return 0, false
	}
	usec, err := strconv.ParseInt(renderer.TimestampUsec, 10, 64)
	if err != nil {
		return 0, false
	}
	offset := time.UnixMicro(usec).Sub(p.startedAt)
	if offset < 0 {
		offset = 0
	}
	return offset, true
}

func (a *addChatItemAction) renderer() (*messageRenderer, bool) {
	if a.Item.LiveChatTextMessageRenderer != nil {
		return a.Item.LiveChatTextMessageRenderer, false
	}
	if a.Item.LiveChatPaidMessageRenderer != nil {
		return a.Item.LiveChatPaidMessageRenderer, true
	}
	return nil, false
}

func (r *messageRenderer) text() string {
	var sb strings.Builder
	for _, run := range r.Message.Runs {
		sb.WriteString(run.Text)
	}
	return artifactReplacer.Replace(sb.String())
}
