package session

import (
	"danmaku-sync/internal/api"
	"danmaku-sync/internal/config"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/service"
	"danmaku-sync/internal/utils"
	"errors"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
)

const sessionApiC = "session_api"

func CreateHandler(w http.ResponseWriter, r *http.Request) {
	var param CreateParam
	if err := api.DecodeJSONBody(w, r, &param); err != nil {
		return
	}
	if param.Platform == "" || param.Id == "" {
		api.ResponseError(w, http.StatusBadRequest, errors.New("platform and id are required"))
		return
	}

	s, err := service.GetSessions().Open(r.Context(), param.Platform, param.Id)
	if err != nil {
		utils.WarnLog(sessionApiC, "open session failed", "platform", param.Platform, "id", param.Id, "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrUnsupportedPlatform) {
			status = http.StatusBadRequest
		}
		api.ResponseError(w, status, err)
		return
	}
	api.ResponseJSON(w, http.StatusCreated, status(s))
}

func ListHandler(w http.ResponseWriter, r *http.Request) {
	list := service.GetSessions().List()
	var result = make([]*StatusResult, 0, len(list))
	for _, s := range list {
		result = append(result, status(s))
	}
	api.ResponseJSON(w, http.StatusOK, result)
}

func StatusHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := lookup(w, r)
	if !ok {
		return
	}
	api.ResponseJSON(w, http.StatusOK, status(s))
}

func DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := service.GetSessions().Close(chi.URLParam(r, "sid")); err != nil {
		api.ResponseError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommentHandler 取走当前会话所有待显示的弹幕
func CommentHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := lookup(w, r)
	if !ok {
		return
	}
	data := s.Engine.DrainPending()
	mergeMills := config.GetConfig().MergeDanmakuInMills
	if mergeMills > 0 {
		data = danmaku.MergeDanmaku(data, mergeMills)
	}

	result := &CommentResult{
		Count:    int64(len(data)),
		Comments: make([]*Comment, 0, len(data)),
	}
	for _, d := range data {
		result.Comments = append(result.Comments, &Comment{
			CID:       commentId(d.Identity),
			P:         d.GenDandanAttribute(),
			M:         d.Text,
			Identity:  d.Identity,
			Color:     d.ARGBColor,
			Position:  d.Position.String(),
			FontSize:  d.RelativeFontSize,
			OffsetMs:  d.Offset.Milliseconds(),
			HasOffset: d.HasOffset,
			Live:      d.IsLive,
		})
	}
	api.ResponseJSON(w, http.StatusOK, result)
}

func PositionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := lookup(w, r)
	if !ok {
		return
	}
	var param PositionParam
	if err := api.DecodeJSONBody(w, r, &param); err != nil {
		return
	}
	if param.OffsetMs == nil {
		api.ResponseError(w, http.StatusBadRequest, errors.New("offsetMs is required"))
		return
	}
	s.Engine.ReportPosition(*param.OffsetMs)
	w.WriteHeader(http.StatusNoContent)
}

func StopHandler(w http.ResponseWriter, r *http.Request) {
	engineAction(w, r, (*danmaku.Engine).Stop)
}

func ReconnectHandler(w http.ResponseWriter, r *http.Request) {
	engineAction(w, r, (*danmaku.Engine).Reconnect)
}

func ClearHandler(w http.ResponseWriter, r *http.Request) {
	engineAction(w, r, (*danmaku.Engine).ClearMappingState)
}

func engineAction(w http.ResponseWriter, r *http.Request, action func(*danmaku.Engine)) {
	s, ok := lookup(w, r)
	if !ok {
		return
	}
	action(s.Engine)
	api.ResponseJSON(w, http.StatusOK, status(s))
}

func lookup(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := service.GetSessions().Get(chi.URLParam(r, "sid"))
	if err != nil {
		api.ResponseError(w, http.StatusNotFound, err)
		return nil, false
	}
	return s, true
}

func status(s *service.Session) *StatusResult {
	return &StatusResult{
		SessionId: s.Id,
		Platform:  s.Platform,
		VideoId:   s.VideoId,
		Mode:      s.Engine.Mode().String(),
		Live:      s.Engine.IsLive(),
		Disabled:  s.Engine.IsDisabled(),
		Running:   s.Engine.Running(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

// commentId dandan cid 需要非负整数
func commentId(identity string) int64 {
	return int64(xxhash.Sum64String(identity) >> 1)
}
