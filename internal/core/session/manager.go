// Package session 管理餐點編輯工作階段。每個工作階段擁有自己的食材清單、
// 儲存流程與搜尋框，彼此不共享狀態；只有搜尋結果快取是全域共用。
package session

import (
	"strings"
	"sync"
	"time"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/core/meal/orchestrator"
	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/core/search/autocomplete"
	"meal-pipeline/internal/core/search/cache"
	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

// Dependencies 建立工作階段所需的外部服務
type Dependencies struct {
	Search       search.ProductSearchService
	Caches       *cache.Caches
	Meals        meal.MealPersistenceService
	Shopping     meal.ShoppingListExternalService
	Calendar     meal.CalendarService
	Autocomplete autocomplete.Settings

	// AfterFunc 為空時使用 time.AfterFunc
	AfterFunc autocomplete.AfterFunc
}

// CreateOptions 建立工作階段的選項
type CreateOptions struct {
	UserID             string
	ProductType        search.ProductType
	ShowProductResults bool
}

// Session 單一使用者的餐點編輯狀態
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	Ledger       *ledger.Ledger
	Orchestrator *orchestrator.Orchestrator
	Search       *autocomplete.Engine

	mu         sync.Mutex
	lastAccess time.Time
}

// Lock 序列化同一工作階段的操作
func (s *Session) Lock() { s.mu.Lock() }

// Unlock 釋放工作階段
func (s *Session) Unlock() { s.mu.Unlock() }

// Manager 工作階段管理器
type Manager struct {
	deps    Dependencies
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	done     chan struct{}
}

// NewManager 創建管理器；idleTTL <= 0 代表不會過期
func NewManager(deps Dependencies, idleTTL time.Duration) *Manager {
	return &Manager{
		deps:     deps,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
}

// Create 建立新的工作階段
func (m *Manager) Create(opts CreateOptions) (*Session, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, common.NewValidationError("user_id required")
	}

	settings := m.deps.Autocomplete
	settings.ProductType = opts.ProductType
	if settings.ProductType == "" {
		settings.ProductType = search.TypeFood
	}
	settings.ShowProductResults = opts.ShowProductResults

	engineOpts := []autocomplete.Option{}
	if m.deps.Caches != nil {
		engineOpts = append(engineOpts, autocomplete.WithCaches(m.deps.Caches.Search, m.deps.Caches.Suggestions))
	}
	if m.deps.AfterFunc != nil {
		engineOpts = append(engineOpts, autocomplete.WithAfterFunc(m.deps.AfterFunc))
	}

	l := ledger.New()
	now := m.now()
	s := &Session{
		ID:           common.GenerateUUID(),
		UserID:       userID,
		CreatedAt:    now,
		Ledger:       l,
		Orchestrator: orchestrator.New(userID, l, m.deps.Meals, m.deps.Shopping, m.deps.Calendar),
		Search:       autocomplete.New(m.deps.Search, settings, engineOpts...),
		lastAccess:   now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	common.LogInfo("工作階段已建立",
		zap.String("session_id", s.ID),
		zap.String("product_type", string(settings.ProductType)),
	)
	return s, nil
}

// Get 取得工作階段並更新最後存取時間；已閒置過久的視為不存在
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	now := m.now()
	if m.expired(s, now) {
		delete(m.sessions, id)
		s.Search.Close()
		return nil, common.ErrSessionNotFound
	}
	s.lastAccess = now
	return s, nil
}

// Close 結束工作階段
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Search.Close()
		common.LogInfo("工作階段已結束", zap.String("session_id", id))
	}
	return ok
}

// Len 目前的工作階段數量
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup 移除閒置過久的工作階段，回傳移除數量
func (m *Manager) Cleanup() int {
	now := m.now()
	var removed []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed = append(removed, s)
		}
	}
	m.mu.Unlock()

	for _, s := range removed {
		s.Search.Close()
	}
	if len(removed) > 0 {
		common.LogInfo("已清除閒置的工作階段", zap.Int("數量", len(removed)))
	}
	return len(removed)
}

// StartCleanup 定期清除閒置的工作階段，直到 Stop 被呼叫
func (m *Manager) StartCleanup(interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.done:
				return
			}
		}
	}()
}

// Stop 停止清理並關閉所有工作階段
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		sessions := m.sessions
		m.sessions = make(map[string]*Session)
		m.mu.Unlock()

		for _, s := range sessions {
			s.Search.Close()
		}
	})
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.idleTTL > 0 && now.Sub(s.lastAccess) > m.idleTTL
}
