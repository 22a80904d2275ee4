package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// StorageKey is the slot name the cart is saved under.
const StorageKey = "cart-state"

const guestKey = "guest-id"

var bucketName = []byte("cart")

// MemoryStorage keeps the serialized cart in memory. FailLoad and FailSave inject errors.
type MemoryStorage struct {
	mu       sync.Mutex
	data     []byte
	FailLoad error
	FailSave error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailLoad != nil {
		return nil, m.FailLoad
	}
	if m.data == nil {
		return nil, nil
	}
	var lines []Line
	if err := json.Unmarshal(m.data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return lines, nil
}

func (m *MemoryStorage) Save(lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		return m.FailSave
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// SetRaw replaces the stored bytes, for simulating a corrupt slot.
func (m *MemoryStorage) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// BoltStorage saves the cart in a local bbolt file.
type BoltStorage struct {
	db *bolt.DB
}

func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cart file: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cart bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Load() ([]Line, error) {
	var lines []Line
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(StorageKey))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &lines)
	})
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return lines, nil
}

func (b *BoltStorage) Save(lines []Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errors.New("cart bucket missing")
		}
		return bucket.Put([]byte(StorageKey), data)
	})
}

// GuestID returns the device's guest reference, creating it on first use.
func (b *BoltStorage) GuestID() (string, error) {
	var id string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errors.New("cart bucket missing")
		}
		if raw := bucket.Get([]byte(guestKey)); raw != nil {
			id = string(raw)
			return nil
		}
		id = "guest_" + uuid.NewString()
		return bucket.Put([]byte(guestKey), []byte(id))
	})
	return id, err
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}
