package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/chartcode/internal/model"
)

// MemoryStore keeps documents in a map. Contents are lost on exit
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[int]model.Document
	nextID int
}

// NewMemory creates an empty in-memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[int]model.Document),
		nextID: 1,
	}
}

func (m *MemoryStore) Get(_ context.Context, id int) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *MemoryStore) AllIDs(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *MemoryStore) Put(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == 0 {
		doc.ID = m.nextID
	}
	if doc.ID >= m.nextID {
		m.nextID = doc.ID + 1
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
