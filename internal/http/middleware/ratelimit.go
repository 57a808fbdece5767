package middleware

import (
	"sync"
	"time"
)

type clientInfo struct {
	start time.Time
	count int
}

// memoryWindows is the fixed-window counter used when redis is not
// configured. Limits then hold per instance only.
type memoryWindows struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	now     func() time.Time
}

func newMemoryWindows() *memoryWindows {
	return &memoryWindows{clients: make(map[string]*clientInfo), now: time.Now}
}

// incr counts one hit for key and returns the count inside the current window.
func (m *memoryWindows) incr(key string, window time.Duration) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ci, ok := m.clients[key]
	if !ok || now.Sub(ci.start) > window {
		m.clients[key] = &clientInfo{start: now, count: 1}
		m.sweep(now, window)
		return 1
	}
	ci.count++
	return int64(ci.count)
}

// sweep drops expired windows once the map grows.
func (m *memoryWindows) sweep(now time.Time, window time.Duration) {
	if len(m.clients) < 10000 {
		return
	}
	for k, ci := range m.clients {
		if now.Sub(ci.start) > window {
			delete(m.clients, k)
		}
	}
}
