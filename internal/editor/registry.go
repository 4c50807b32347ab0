package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("editor session not found")

// Session 是一个用户的一次编辑会话。
type Session struct {
	ID         string
	UserID     uint
	Controller *Controller

	lastSeen time.Time
}

// ControllerFactory 为指定用户创建控制器，决定其持久化与图片上传后端。
type ControllerFactory func(userID uint) *Controller

// Registry 在内存中按 ID 保存编辑会话，空闲超时后回收。
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  ControllerFactory
	idleTTL  time.Duration
	now      func() time.Time
	onSize   func(n int)
}

// NewRegistry 创建会话注册表。idleTTL <= 0 表示不回收。
func NewRegistry(factory ControllerFactory, idleTTL time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// OnSizeChange 注册会话数量变化的回调，在创建、删除与回收之后调用。
func (r *Registry) OnSizeChange(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSize = fn
}

func (r *Registry) sizeChanged() {
	r.mu.Lock()
	fn, n := r.onSize, len(r.sessions)
	r.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Create 创建新会话，控制器尚未挂载。
func (r *Registry) Create(userID uint) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Controller: r.factory(userID),
	}
	r.mu.Lock()
	s.lastSeen = r.now()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.sizeChanged()
	return s
}

// Get 返回属于该用户的会话并刷新活跃时间。
func (r *Registry) Get(userID uint, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = r.now()
	return s, nil
}

// Delete 卸载并移除会话。
func (r *Registry) Delete(userID uint, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Controller.Unmount()
	r.sizeChanged()
	return nil
}

// Len 返回当前会话数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep 回收空闲超时的会话，返回回收数量。
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Controller.Unmount()
	}
	if len(expired) > 0 {
		r.sizeChanged()
	}
	return len(expired)
}

// Run 定期回收空闲会话，直到 ctx 结束。
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("editor sessions expired", "count", n)
			}
		}
	}
}
