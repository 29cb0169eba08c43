package danmaku

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport 网络错误 下个周期重试 不向外抛出
	ErrTransport = errors.New("transport error")
	// ErrNoContinuation 响应中没有可用的continuation 保留旧token重试
	ErrNoContinuation = errors.New("no continuation")
	// ErrDisabled 弹幕不可用 会话进入终止状态
	ErrDisabled = errors.New("bullet comments disabled")
	// ErrDecode 单条弹幕解析失败 只丢弃该条
	ErrDecode = errors.New("decode error")
)

func TransportError(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func DecodeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
