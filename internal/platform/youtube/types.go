package youtube

import (
	"danmaku-sync/internal/danmaku"
	"encoding/json"
	"strconv"
)

type chatRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			Hl            string `json:"hl"`
			Gl            string `json:"gl"`
		} `json:"client"`
	} `json:"context"`
	Continuation       string `json:"continuation"`
	CurrentPlayerState struct {
		PlayerOffsetMs string `json:"playerOffsetMs"`
	} `json:"currentPlayerState"`
}

func newChatRequest(clientVersion string, req danmaku.Request) *chatRequest {
	r := &chatRequest{Continuation: req.Token}
	r.Context.Client.ClientName = "WEB"
	r.Context.Client.ClientVersion = clientVersion
	r.Context.Client.Hl = "en"
	r.Context.Client.Gl = "US"
	offset := req.OffsetMs
	if offset < 0 {
		offset = 0
	}
	r.CurrentPlayerState.PlayerOffsetMs = strconv.FormatInt(offset, 10)
	return r
}

// liveChatResponse get_live_chat 和 get_live_chat_replay 的响应 只保留需要的字段
type liveChatResponse struct {
	ContinuationContents struct {
		LiveChatContinuation struct {
			// 每个元素只有一个key 例如 timedContinuationData
			Continuations []map[string]json.RawMessage `json:"continuations"`
			Actions       []chatAction                 `json:"actions"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

type chatAction struct {
	AddChatItemAction    *addChatItemAction    `json:"addChatItemAction"`
	ReplayChatItemAction *replayChatItemAction `json:"replayChatItemAction"`
}

type addChatItemAction struct {
	Item struct {
		LiveChatTextMessageRenderer *messageRenderer `json:"liveChatTextMessageRenderer"`
		LiveChatPaidMessageRenderer *messageRenderer `json:"liveChatPaidMessageRenderer"`
	} `json:"item"`
}

type replayChatItemAction struct {
	Actions             []chatAction `json:"actions"`
	VideoOffsetTimeMsec string       `json:"videoOffsetTimeMsec"`
}

type messageRenderer struct {
	Id            string `json:"id"`
	TimestampUsec string `json:"timestampUsec"`
	Message       struct {
		Runs []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"message"`
	// 以下只有 SuperChat 有
	PurchaseAmountText struct {
		SimpleText string `json:"simpleText"`
	} `json:"purchaseAmountText"`
	BodyBackgroundColor int64 `json:"bodyBackgroundColor"`
}

func (r *liveChatResponse) candidates() []danmaku.Candidate {
	var result []danmaku.Candidate
	for _, entry := range r.ContinuationContents.LiveChatContinuation.Continuations {
		candidate := danmaku.Candidate{}
		for key, raw := range entry {
			var data struct {
				Continuation string `json:"continuation"`
			}
			if json.Unmarshal(raw, &data) == nil && data.Continuation != "" {
				candidate[key] = data.Continuation
			}
		}
		result = append(result, candidate)
	}
	return result
}

// initialData 观看页内嵌的 ytInitialData
type initialData struct {
	Contents struct {
		TwoColumnWatchNextResults struct {
			ConversationBar struct {
				LiveChatRenderer struct {
					Continuations []struct {
						ReloadContinuationData struct {
							Continuation string `json:"continuation"`
						} `json:"reloadContinuationData"`
					} `json:"continuations"`
				} `json:"liveChatRenderer"`
			} `json:"conversationBar"`
		} `json:"twoColumnWatchNextResults"`
	} `json:"contents"`
}
