// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/onoro/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToAll(event string, args ...any) int
	BroadcastTo(sessionID string, event string, args ...any) error
}

// 基于会话管理器的广播器，通过每个会话的套接字下发通知
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToAll 向所有在线会话发送通知，返回成功送达的数量
func (b *SessionBroadcaster) BroadcastToAll(event string, args ...any) int {
	delivered := 0
	for _, s := range b.sessionManager.All() {
		if err := s.Sock.Emit(event, args...); err != nil {
			// 单个会话发送失败不影响其它会话
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastTo 向指定会话发送通知
func (b *SessionBroadcaster) BroadcastTo(sessionID string, event string, args ...any) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.Sock.Emit(event, args...)
}
