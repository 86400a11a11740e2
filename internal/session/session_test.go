package session

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/txdxai/sophia/pkg/models"
)

var threadIDPattern = regexp.MustCompile(`^thread_42_[0-9a-f]{32}$`)

func TestCreate_IDFormatAndIndex(t *testing.T) {
	s := NewMemoryStore()

	id := s.Create(42, 7)
	assert.Regexp(t, threadIDPattern, id)
	assert.Equal(t, []string{id}, s.ListByCompany(42))

	th, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), th.CompanyID)
	assert.Equal(t, int64(7), th.UserID)
	assert.Empty(t, th.Messages)
}

func TestCreate_UniqueIDs(t *testing.T) {
	s := NewMemoryStore()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := s.Create(42, 1)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestAppend_OrderAndRoles(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create(1, 1)

	require.NoError(t, s.Append(id, models.RoleUser, "hola"))
	require.NoError(t, s.Append(id, models.RoleAssistant, "¿en qué ayudo?"))

	th, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, th.Messages, 2)
	assert.Equal(t, "hola", th.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, th.Messages[1].Role)
	assert.Equal(t, th.Messages[1].Timestamp, th.LastUpdated)
}

func TestAppend_InvalidRole(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create(1, 1)

	err := s.Append(id, "system", "x")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAppend_UnknownThread(t *testing.T) {
	s := NewMemoryStore()
	err := s.Append("thread_1_nope", models.RoleUser, "x")
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestAppend_TimestampsNeverGoBackwards(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Minute), base.Add(-time.Hour)}
	i := 0
	s.now = func() time.Time {
		ts := clock[i%len(clock)]
		i++
		return ts
	}

	id := s.Create(1, 1) // consumes base
	require.NoError(t, s.Append(id, models.RoleUser, "a"))
	require.NoError(t, s.Append(id, models.RoleUser, "b"))

	th, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), th.Messages[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), th.Messages[1].Timestamp)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create(1, 1)
	require.NoError(t, s.Append(id, models.RoleUser, "first"))

	snap, err := s.Get(id)
	require.NoError(t, err)
	require.NoError(t, s.Append(id, models.RoleUser, "second"))
	snap.Messages[0].Content = "mutated"

	assert.Len(t, snap.Messages, 1)
	th, _ := s.Get(id)
	assert.Equal(t, "first", th.Messages[0].Content)
	assert.Len(t, th.Messages, 2)
}

func TestDelete_RemovesFromBothIndexes(t *testing.T) {
	s := NewMemoryStore()
	a := s.Create(5, 1)
	b := s.Create(5, 1)

	s.Delete(a)

	_, err := s.Get(a)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Equal(t, []string{b}, s.ListByCompany(5))

	s.Delete(b)
	assert.Empty(t, s.ListByCompany(5))

	// Deleting twice is a no-op.
	s.Delete(b)
}

func TestDeleteCompany(t *testing.T) {
	s := NewMemoryStore()
	a := s.Create(1, 1)
	other := s.Create(2, 1)

	s.DeleteCompany(1)

	_, err := s.Get(a)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Empty(t, s.ListByCompany(1))
	_, err = s.Get(other)
	assert.NoError(t, err)
}

func TestTenantIsolation(t *testing.T) {
	s := NewMemoryStore()
	s.Create(1, 1)
	s.Create(1, 2)
	s.Create(2, 1)

	assert.Len(t, s.ListByCompany(1), 2)
	assert.Len(t, s.ListByCompany(2), 1)
	assert.Empty(t, s.ListByCompany(3))
}

func TestConcurrentAppends(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create(1, 1)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Append(id, models.RoleUser, fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	th, err := s.Get(id)
	require.NoError(t, err)
	assert.Len(t, th.Messages, writers*perWriter)

	// Per-writer order is preserved.
	last := make(map[int]int)
	for _, m := range th.Messages {
		var w, i int
		_, err := fmt.Sscanf(m.Content, "%d-%d", &w, &i)
		require.NoError(t, err)
		if prev, ok := last[w]; ok {
			assert.Greater(t, i, prev)
		}
		last[w] = i
	}
}

func TestConcurrentCreateDelete(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Create(9, 1)
			_ = s.Append(id, models.RoleUser, "x")
			s.Delete(id)
		}()
	}
	wg.Wait()
	assert.Empty(t, s.ListByCompany(9))
}
