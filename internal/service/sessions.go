package service

import (
	"context"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/utils"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

/*
	会话服务，每个会话对应一次观看，持有一个独立的同步引擎。
	sessionId -> Session -> Engine

	会话只保存在内存中，服务重启后所有会话失效，客户端需要重新创建。
*/

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrSessionNotFound     = errors.New("session not found")
)

const sessionC = "session_service"

type Session struct {
	Id        string
	Platform  string
	VideoId   string
	CreatedAt time.Time
	Engine    *danmaku.Engine
}

type Sessions struct {
	lock  sync.RWMutex
	items map[string]*Session
}

var sessions = NewSessions()

func init() {
	danmaku.RegisterInitializer(sessions)
}

func GetSessions() *Sessions {
	return sessions
}

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]*Session, 100)}
}

func (s *Sessions) ServerInit() error {
	utils.InfoLog(sessionC, "session service ready", "platforms", danmaku.GetPlatforms())
	return nil
}

// Finalize 服务退出时关闭所有会话
func (s *Sessions) Finalize() error {
	size := s.CloseAll()
	utils.InfoLog(sessionC, "all sessions closed", "size", size)
	return nil
}

// Open 创建引擎并立即开始同步
func (s *Sessions) Open(ctx context.Context, platform, id string) (*Session, error) {
	service := danmaku.GetService(platform)
	if service == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	engine, err := service.NewEngine(ctx, id)
	if err != nil {
		return nil, err
	}
	session := &Session{
		Id:        uuid.NewString(),
		Platform:  platform,
		VideoId:   id,
		CreatedAt: time.Now(),
		Engine:    engine,
	}
	engine.Start()

	s.lock.Lock()
	s.items[session.Id] = session
	s.lock.Unlock()

	utils.InfoLog(sessionC, "session opened", "session", session.Id, "platform", platform, "id", id,
		"live", engine.IsLive(), "disabled", engine.IsDisabled())
	return session, nil
}

func (s *Sessions) Get(sid string) (*Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	session, ok := s.items[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return session, nil
}

// List 按创建时间排序
func (s *Sessions) List() []*Session {
	s.lock.RLock()
	result := make([]*Session, 0, len(s.items))
	for _, v := range s.items {
		result = append(result, v)
	}
	s.lock.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *Sessions) Close(sid string) error {
	s.lock.Lock()
	session, ok := s.items[sid]
	delete(s.items, sid)
	s.lock.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	session.Engine.Close()
	utils.InfoLog(sessionC, "session closed", "session", sid)
	return nil
}

func (s *Sessions) CloseAll() int {
	s.lock.Lock()
	items := s.items
	s.items = make(map[string]*Session, 100)
	s.lock.Unlock()

	for _, v := range items {
		v.Engine.Close()
	}
	return len(items)
}
