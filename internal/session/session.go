// Package session keeps per-thread conversation history in memory.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/txdxai/sophia/pkg/models"
)

// Sentinel errors for session operations.
var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrInvalidRole    = errors.New("invalid message role")
)

// Store is the interface for conversation thread storage.
type Store interface {
	Create(companyID, userID int64) string
	Append(threadID, role, content string) error
	Get(threadID string) (models.Thread, error)
	Delete(threadID string)
	ListByCompany(companyID int64) []string
	DeleteCompany(companyID int64)
}

type entry struct {
	mu     sync.Mutex
	thread models.Thread
}

// MemoryStore implements Store with process-local maps. Appends to one thread
// are serialized by the thread's own lock; the store lock only guards the
// indexes.
type MemoryStore struct {
	mu        sync.RWMutex
	threads   map[string]*entry
	byCompany map[int64][]string
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:   make(map[string]*entry),
		byCompany: make(map[int64][]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewThreadID returns thread_<company>_<32 hex chars>.
func NewThreadID(companyID int64) string {
	u := uuid.New()
	return fmt.Sprintf("thread_%d_%s", companyID, strings.ReplaceAll(u.String(), "-", ""))
}

func (s *MemoryStore) Create(companyID, userID int64) string {
	id := NewThreadID(companyID)
	now := s.now()

	s.mu.Lock()
	s.threads[id] = &entry{thread: models.Thread{
		ID:          id,
		CompanyID:   companyID,
		UserID:      userID,
		Messages:    []models.Message{},
		CreatedAt:   now,
		LastUpdated: now,
	}}
	s.byCompany[companyID] = append(s.byCompany[companyID], id)
	s.mu.Unlock()

	slog.Debug("thread created", "thread_id", id, "company_id", companyID)
	return id
}

func (s *MemoryStore) Append(threadID, role, content string) error {
	if role != models.RoleUser && role != models.RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	e, ok := s.lookup(threadID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts := s.now()
	if ts.Before(e.thread.LastUpdated) {
		ts = e.thread.LastUpdated
	}
	e.thread.Messages = append(e.thread.Messages, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: ts,
	})
	e.thread.LastUpdated = ts
	return nil
}

// Get returns a snapshot; later appends are not visible through it.
func (s *MemoryStore) Get(threadID string) (models.Thread, error) {
	e, ok := s.lookup(threadID)
	if !ok {
		return models.Thread{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.thread
	t.Messages = append([]models.Message(nil), e.thread.Messages...)
	return t, nil
}

func (s *MemoryStore) Delete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.threads[threadID]
	if !ok {
		return
	}
	delete(s.threads, threadID)

	company := e.thread.CompanyID
	ids := s.byCompany[company]
	for i, id := range ids {
		if id == threadID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byCompany, company)
	} else {
		s.byCompany[company] = ids
	}
}

func (s *MemoryStore) ListByCompany(companyID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.byCompany[companyID]...)
}

func (s *MemoryStore) DeleteCompany(companyID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byCompany[companyID] {
		delete(s.threads, id)
	}
	delete(s.byCompany, companyID)
	slog.Info("threads cleared", "company_id", companyID)
}

func (s *MemoryStore) lookup(threadID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.threads[threadID]
	return e, ok
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
