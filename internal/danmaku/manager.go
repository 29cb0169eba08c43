package danmaku

import (
	"context"
	"sync"
	"time"
)

type Platform string

const (
	YouTube  Platform = "youtube"
	NicoNico Platform = "niconico"
)

// Service 平台弹幕服务 每次观看创建一个独立的 Engine
type Service interface {
	Initializer
	// NewEngine 拉取观看页信息并创建同步引擎 id是各自平台的视频id或者观看页url
	NewEngine(ctx context.Context, id string) (*Engine, error)
	Platform() Platform
}

type Finalizer interface {
	Finalize() error
}

type ServerInitializer interface {
	ServerInit() error
}

type Initializer interface {
	Init() error
}

// Position 弹幕显示位置
type Position int

const (
	Regular Position = iota
	Bottom
	Top
	SuperChat
)

func (p Position) String() string {
	switch p {
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	case SuperChat:
		return "superchat"
	}
	return "regular"
}

// DandanMode 兼容dandan API p字段模式 1普通 4底部 5顶部
func (p Position) DandanMode() int {
	switch p {
	case Bottom:
		return BottomMode
	case Top:
		return TopMode
	}
	return NormalMode
}

const WhiteColor uint32 = 0xFFFFFFFF

const NormalMode = 1
const BottomMode = 4
const TopMode = 5

const (
	DefaultFontSize = 0.7
	SmallFontSize   = 0.5
)

// Comment 一条弹幕 由各平台解析器生成后不再修改
type Comment struct {
	Text             string
	ARGBColor        uint32
	Position         Position
	RelativeFontSize float64
	// Offset 相对直播开始或者视频开头的显示时间 HasOffset 为false时表示立即显示
	Offset    time.Duration
	HasOffset bool
	IsLive    bool
	// Identity 去重key 各平台自行定义
	Identity string
}

func NewComment(identity, text string) Comment {
	return Comment{
		Identity:         identity,
		Text:             text,
		ARGBColor:        WhiteColor,
		Position:         Regular,
		RelativeFontSize: DefaultFontSize,
	}
}

func (c Comment) WithOffset(offset time.Duration) Comment {
	c.Offset = offset
	c.HasOffset = true
	return c
}

type manager struct {
	lock         sync.RWMutex
	services     []Service
	initializers []interface{}
}

var adapter = &manager{
	services:     []Service{},
	initializers: []interface{}{},
}

func GetService(platform string) Service {
	adapter.lock.RLock()
	defer adapter.lock.RUnlock()
	for _, v := range adapter.services {
		if string(v.Platform()) == platform {
			return v
		}
	}
	return nil
}

func GetInitializers() []interface{} {
	adapter.lock.RLock()
	defer adapter.lock.RUnlock()
	return append([]interface{}{}, adapter.initializers...)
}

func GetPlatforms() []string {
	adapter.lock.RLock()
	defer adapter.lock.RUnlock()
	var result []string
	for _, v := range adapter.services {
		result = append(result, string(v.Platform()))
	}
	return result
}

// RegisterService 同一平台重复注册时替换旧的实现
func RegisterService(s Service) {
	adapter.lock.Lock()
	defer adapter.lock.Unlock()
	for i, v := range adapter.services {
		if v.Platform() == s.Platform() {
			adapter.services[i] = s
			return
		}
	}
	adapter.services = append(adapter.services, s)
}

func RegisterInitializer(i interface{}) {
	adapter.lock.Lock()
	defer adapter.lock.Unlock()
	adapter.initializers = append(adapter.initializers, i)
}
