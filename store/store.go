// Package store defines the backing store interface and implementations.
package store

import (
	"encoding/json"
	"math"
)

// Record is a single document in a collection. Every stored record carries an
// integer "id" field assigned by the store.
type Record map[string]any

// IDField is the name of the generated identifier field.
const IDField = "id"

// Store is the interface that all backing stores must implement.
// It operates on named collections, where each collection is an ordered
// list of records keyed by a generated integer id.
type Store interface {
	// GetAll returns every record in a collection in insertion order.
	GetAll(collection string) ([]Record, error)

	// GetByID returns a single record, or nil if not found.
	GetByID(collection string, id int) (Record, error)

	// Create assigns the next id, stores the fields and returns the stored record.
	// Ids are never reused, even after a delete.
	Create(collection string, fields Record) (Record, error)

	// DeleteByID removes a record. Returns true if it existed.
	DeleteByID(collection string, id int) (bool, error)

	// Update overwrites the given fields of a record in place and returns the
	// result, or nil if no record has that id. The id itself is never changed.
	Update(collection string, id int, fields Record) (Record, error)

	// ListCollections returns the names of all collections that contain data.
	ListCollections() ([]string, error)
}

// ID returns the record's generated id.
func (r Record) ID() (int, bool) {
	return r.Int(IDField)
}

// Int reads an integer field. Records that went through JSON hold numbers as
// float64, so whole floats are accepted. Values that do not fit in an int
// are reported as absent rather than wrapped.
func (r Record) Int(key string) (int, bool) {
	switch n := r[key].(type) {
	case int:
		return n, true
	case int64:
		return fitInt(n)
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, hence >=.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return fitInt(int64(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return fitInt(i)
	}
	return 0, false
}

func fitInt(i int64) (int, bool) {
	if int64(int(i)) != i {
		return 0, false
	}
	return int(i), true
}

// deepCopy returns a deep copy of a record by round-tripping through JSON.
// Numbers come back as float64 and are exact up to 2^53.
func deepCopy(src Record) Record {
	if src == nil {
		return nil
	}
	b, _ := json.Marshal(src)
	var dst Record
	_ = json.Unmarshal(b, &dst)
	return dst
}

// merge copies fields onto dst, skipping the id.
func merge(dst, fields Record) {
	for k, v := range fields {
		if k == IDField {
			continue
		}
		dst[k] = v
	}
}

// Seed inserts records into an empty collection. A collection that already
// holds data is left untouched, so persistent backends are not re-seeded on
// every start.
func Seed(s Store, collection string, records []Record) (int, error) {
	existing, err := s.GetAll(collection)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, r := range records {
		if _, err := s.Create(collection, r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
