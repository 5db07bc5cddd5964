package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// JsonFileStore stores each collection as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  shows.json   # {"last_id": 6, "records": [{"id": 1, ...}, ...]}
type JsonFileStore struct {
	mu  sync.RWMutex
	dir string
}

// collectionFile is the on-disk shape of one collection.
type collectionFile struct {
	LastID  int      `json:"last_id"`
	Records []Record `json:"records"`
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JsonFileStore{dir: dir}, nil
}

func (s *JsonFileStore) collectionPath(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *JsonFileStore) load(collection string) (*collectionFile, error) {
	data, err := os.ReadFile(s.collectionPath(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return &collectionFile{}, nil
		}
		return nil, err
	}
	var cf collectionFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return &cf, nil
}

func (s *JsonFileStore) save(collection string, cf *collectionFile) error {
	if cf.Records == nil {
		cf.Records = []Record{}
	}
	b, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.collectionPath(collection), b, 0o644)
}

func (cf *collectionFile) indexOf(id int) int {
	for i, r := range cf.Records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

func (s *JsonFileStore) GetAll(collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cf, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	if cf.Records == nil {
		return []Record{}, nil
	}
	return cf.Records, nil
}

func (s *JsonFileStore) GetByID(collection string, id int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cf, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	i := cf.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	return cf.Records[i], nil
}

func (s *JsonFileStore) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cf, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	cf.LastID++
	rec := Record{}
	merge(rec, fields)
	rec[IDField] = cf.LastID
	cf.Records = append(cf.Records, rec)
	if err := s.save(collection, cf); err != nil {
		return nil, err
	}
	return deepCopy(rec), nil
}

func (s *JsonFileStore) DeleteByID(collection string, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cf, err := s.load(collection)
	if err != nil {
		return false, err
	}
	i := cf.indexOf(id)
	if i < 0 {
		return false, nil
	}
	cf.Records = append(cf.Records[:i], cf.Records[i+1:]...)
	return true, s.save(collection, cf)
}

func (s *JsonFileStore) Update(collection string, id int, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cf, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	i := cf.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	merge(cf.Records[i], fields)
	if err := s.save(collection, cf); err != nil {
		return nil, err
	}
	return deepCopy(cf.Records[i]), nil
}

func (s *JsonFileStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		collection := strings.TrimSuffix(name, ".json")
		cf, err := s.load(collection)
		if err != nil {
			return nil, err
		}
		if len(cf.Records) > 0 {
			names = append(names, collection)
		}
	}
	sort.Strings(names)
	return names, nil
}
