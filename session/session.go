// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/onoro/socket"
)

// Session 表示一条已接入的客户端连接及其套接字
type Session struct {
	ID          string
	Sock        *socket.Socket
	RemoteAddr  string
	CreatedAt   time.Time
	gamesServed int
	mutex       sync.Mutex
}

func NewSession(id, remoteAddr string, sock *socket.Socket) *Session {
	return &Session{
		ID:         id,
		Sock:       sock,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// AddGameServed 累加该连接下发的对局数
func (s *Session) AddGameServed() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gamesServed++
}

func (s *Session) GamesServed() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.gamesServed
}

func (s *Session) Close() error {
	return s.Sock.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All 返回会话快照，供广播遍历
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
