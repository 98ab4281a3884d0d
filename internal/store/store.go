package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/culler/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketRatings = []byte("ratings")
	bucketMarks   = []byte("marks")
)

// ratingRecord is the persisted form of a rating
type ratingRecord struct {
	Rating    domain.Rating `json:"rating"`
	UpdatedAt int64         `json:"updatedAt"`
}

// RatingStore implements domain.RatingStore using BoltDB.
type RatingStore struct {
	db     *bolt.DB
	mu     sync.RWMutex // Protects memory cache
	closed bool

	// In-memory cache for hot-path reads (promoted on access).
	// Memory-only mode keeps everything here.
	cache map[string][]byte
}

var _ domain.RatingStore = (*RatingStore)(nil)

// NewRatingStore opens (or creates) the rating database in dir.
// An empty dir selects memory-only mode.
func NewRatingStore(dir string) (*RatingStore, error) {
	if dir == "" {
		// Memory-only mode (no persistence)
		return &RatingStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "culler.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRatings, bucketMarks} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &RatingStore{db: db, cache: make(map[string][]byte)}, nil
}

// rootKey scopes keys to a catalog root. The root is normalized so that
// trailing separators and case on case-insensitive paths don't split data.
func rootKey(root string) string {
	normalized := filepath.ToSlash(filepath.Clean(root))
	hash := sha256.Sum256([]byte(normalized))
	return "root:" + hex.EncodeToString(hash[:6]) + ":"
}

func (s *RatingStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *RatingStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *RatingStore) delete(bucket []byte, key string) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// scanPrefix visits every value under prefix. Values are read from BoltDB
// and promoted to the memory cache; in memory-only mode the cache is the
// source of truth.
func (s *RatingStore) scanPrefix(bucket []byte, prefix string, fn func(key string, data []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.ErrStoreClosed
	}
	if s.db == nil {
		cachePrefix := string(bucket) + ":" + prefix
		type kv struct {
			k string
			v []byte
		}
		var found []kv
		for k, v := range s.cache {
			if strings.HasPrefix(k, cachePrefix) {
				found = append(found, kv{strings.TrimPrefix(k, string(bucket)+":"), v})
			}
		}
		s.mu.RUnlock()
		for _, e := range found {
			if err := fn(e.k, e.v); err != nil {
				return err
			}
		}
		return nil
	}
	s.mu.RUnlock()

	promoted := make(map[string][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			data := make([]byte, len(v))
			copy(data, v)
			promoted[string(bucket)+":"+string(k)] = data
			if err := fn(string(k), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	for k, v := range promoted {
		s.cache[k] = v
	}
	s.mu.Unlock()
	return nil
}

func (s *RatingStore) deletePrefix(bucket []byte, prefix string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	cachePrefix := string(bucket) + ":" + prefix
	for k := range s.cache {
		if strings.HasPrefix(k, cachePrefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		c := b.Cursor()
		p := []byte(prefix)
		var keys [][]byte
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// === Ratings ===

func (s *RatingStore) GetRatings(root string) (map[domain.ItemID]domain.Rating, error) {
	prefix := rootKey(root)
	ratings := make(map[domain.ItemID]domain.Rating)
	err := s.scanPrefix(bucketRatings, prefix, func(key string, data []byte) error {
		var rec ratingRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("corrupt rating %q: %w", key, err)
		}
		if rec.Rating.IsRated() {
			ratings[domain.ItemID(strings.TrimPrefix(key, prefix))] = rec.Rating
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// SetRating stores a rating. RatingNone removes the record.
func (s *RatingStore) SetRating(root string, id domain.ItemID, rating domain.Rating) error {
	if !rating.Valid() {
		return fmt.Errorf("rating %d out of range", int(rating))
	}
	key := rootKey(root) + string(id)
	if rating == domain.RatingNone {
		return s.delete(bucketRatings, key)
	}
	return s.set(bucketRatings, key, ratingRecord{Rating: rating, UpdatedAt: time.Now().Unix()})
}

// === Marks ===

func (s *RatingStore) GetMarks(root string) ([]domain.ItemID, error) {
	prefix := rootKey(root)
	var marks []domain.ItemID
	err := s.scanPrefix(bucketMarks, prefix, func(key string, _ []byte) error {
		marks = append(marks, domain.ItemID(strings.TrimPrefix(key, prefix)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marks, nil
}

func (s *RatingStore) SetMarked(root string, id domain.ItemID, marked bool) error {
	key := rootKey(root) + string(id)
	if !marked {
		return s.delete(bucketMarks, key)
	}
	return s.set(bucketMarks, key, time.Now().Unix())
}

// === Invalidation ===

// ClearRoot wipes every rating and mark recorded for root
func (s *RatingStore) ClearRoot(root string) error {
	prefix := rootKey(root)
	if err := s.deletePrefix(bucketRatings, prefix); err != nil {
		return err
	}
	return s.deletePrefix(bucketMarks, prefix)
}
