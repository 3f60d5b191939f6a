package live

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/spindle/pkg/protocol"
)

// Observer is notified when sessions open and close.
type Observer interface {
	SessionOpened(id string)
	SessionClosed(id string)
}

// Manager tracks the live sessions of a server.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	observer Observer

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
}

// NewManager returns an empty manager. observer may be nil.
func NewManager(observer Observer) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		observer: observer,
	}
}

func (m *Manager) add(s *Session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.totalCreated.Add(1)
	if m.observer != nil {
		m.observer.SessionOpened(s.id)
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.totalClosed.Add(1)
	if m.observer != nil {
		m.observer.SessionClosed(id)
	}
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the ids of the open sessions in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Totals returns how many sessions were ever opened and closed.
func (m *Manager) Totals() (created, closed uint64) {
	return m.totalCreated.Load(), m.totalClosed.Load()
}

// CloseAll ends every open session with reason.
func (m *Manager) CloseAll(reason protocol.CloseReason, message string) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Close(reason, message)
	}
}
