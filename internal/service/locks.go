package service

import "sync"

// playerLocks 按玩家ID加锁，不同玩家互不阻塞
type playerLocks struct {
	mu    sync.Mutex
	locks map[string]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[string]*playerLock)}
}

// Lock 锁定玩家并返回解锁函数，无人等待时释放条目
func (l *playerLocks) Lock(playerID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[playerID]
	if !ok {
		entry = &playerLock{}
		l.locks[playerID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, playerID)
		}
		l.mu.Unlock()
	}
}

// size 当前持有条目数
func (l *playerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
