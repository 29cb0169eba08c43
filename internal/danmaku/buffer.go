package danmaku

import "sync"

// Buffer 轮询协程写入 消费方一次性取走
type Buffer struct {
	lock  sync.Mutex
	items []Comment
}

func (b *Buffer) Append(items ...Comment) {
	if len(items) == 0 {
		return
	}
	b.lock.Lock()
	b.items = append(b.items, items...)
	b.lock.Unlock()
}

// Drain 交换为空切片并返回原有内容
func (b *Buffer) Drain() []Comment {
	b.lock.Lock()
	items := b.items
	b.items = nil
	b.lock.Unlock()

	if items == nil {
		return []Comment{}
	}
	return items
}

func (b *Buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.items)
}
