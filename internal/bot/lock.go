package bot

import "sync"

// chatLocks serializes event handling per chat. Telegram may redeliver
// webhook updates out of order for the same chat; the flows assume one
// event at a time per conversation, so the guarantee is enforced here.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the chat and returns the unlock func.
func (l *chatLocks) acquire(chatID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[chatID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
