package store

import (
	"sort"
	"sync"
)

// memCollection is one named list plus its id counter.
type memCollection struct {
	lastID  int
	records []Record
}

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

// indexOf scans for id. Caller must hold the lock.
func (c *memCollection) indexOf(id int) int {
	for i, r := range c.records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) GetAll(collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return []Record{}, nil
	}
	result := make([]Record, 0, len(coll.records))
	for _, r := range coll.records {
		result = append(result, deepCopy(r))
	}
	return result, nil
}

func (m *MemoryStore) GetByID(collection string, id int) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	i := coll.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	return deepCopy(coll.records[i]), nil
}

func (m *MemoryStore) Create(collection string, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = &memCollection{}
		m.collections[collection] = coll
	}
	coll.lastID++
	rec := Record{}
	merge(rec, deepCopy(fields))
	rec[IDField] = coll.lastID
	coll.records = append(coll.records, rec)
	return deepCopy(rec), nil
}

func (m *MemoryStore) DeleteByID(collection string, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return false, nil
	}
	i := coll.indexOf(id)
	if i < 0 {
		return false, nil
	}
	coll.records = append(coll.records[:i], coll.records[i+1:]...)
	return true, nil
}

func (m *MemoryStore) Update(collection string, id int, fields Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	i := coll.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	merge(coll.records[i], deepCopy(fields))
	return deepCopy(coll.records[i]), nil
}

func (m *MemoryStore) ListCollections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name, coll := range m.collections {
		if len(coll.records) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
