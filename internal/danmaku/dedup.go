package danmaku

import "sync"

// DedupStore 已出现过的弹幕id 只在跳转或者外部清理时清空
type DedupStore struct {
	lock sync.Mutex
	seen map[string]struct{}
}

func NewDedupStore() *DedupStore {
	return &DedupStore{seen: make(map[string]struct{}, 1000)}
}

// Add 返回false表示该id已经出现过
func (s *DedupStore) Add(identity string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.seen[identity]; ok {
		return false
	}
	s.seen[identity] = struct{}{}
	return true
}

func (s *DedupStore) Contains(identity string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.seen[identity]
	return ok
}

func (s *DedupStore) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.seen = make(map[string]struct{}, 1000)
}

func (s *DedupStore) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.seen)
}
