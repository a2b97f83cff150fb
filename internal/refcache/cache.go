// Package refcache is a read-through cache for slow-changing reference rows
// (collectors, crews, yards). Work orders, assignments and timeline entries
// are never cached here.
package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/redis"
)

const (
	kindCollector = "collector"
	kindCrew      = "crew"
	kindYard      = "yard"
)

// CollectorRef is the display data shown next to an assignment.
type CollectorRef struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         *string   `json:"phone,omitempty"`
	AverageRating float64   `json:"average_rating"`
}

// CrewRef is the display data for a crew.
type CrewRef struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
}

// YardRef is the display data for a yard.
type YardRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

// Store is the key/value backend. A missing key returns ErrMiss.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ErrMiss reports a cache miss from a Store.
var ErrMiss = errors.New("cache miss")

// Cache resolves reference rows through the store, falling back to the database.
type Cache struct {
	db    *gorm.DB
	store Store
	ttl   time.Duration
	keyFn func(kind, id string) string
}

// New builds a cache with an explicit TTL. A nil store disables caching.
func New(db *gorm.DB, store Store, ttl time.Duration) *Cache {
	return &Cache{
		db:    db,
		store: store,
		ttl:   ttl,
		keyFn: func(kind, id string) string { return "ref:" + kind + ":" + id },
	}
}

// NewRedis builds a cache backed by Redis with namespaced keys.
func NewRedis(db *gorm.DB, client *redis.Client, ttl time.Duration) *Cache {
	c := New(db, redisStore{client: client}, ttl)
	c.keyFn = client.ReferenceKey
	return c
}

// Collector returns display data for id.
func (c *Cache) Collector(ctx context.Context, id uuid.UUID) (*CollectorRef, error) {
	var ref CollectorRef
	err := c.load(ctx, kindCollector, id, &ref, func() (any, error) {
		var row models.Collector
		if err := c.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
			return nil, err
		}
		return CollectorRef{ID: row.ID, Name: row.Name, Phone: row.Phone, AverageRating: row.AverageRating}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// Crew returns display data for id, including the current member count.
func (c *Cache) Crew(ctx context.Context, id uuid.UUID) (*CrewRef, error) {
	var ref CrewRef
	err := c.load(ctx, kindCrew, id, &ref, func() (any, error) {
		var row models.Crew
		if err := c.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&row).Error; err != nil {
			return nil, err
		}
		return CrewRef{ID: row.ID, Name: row.Name, MemberCount: len(row.Members)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// Yard returns display data for id.
func (c *Cache) Yard(ctx context.Context, id uuid.UUID) (*YardRef, error) {
	var ref YardRef
	err := c.load(ctx, kindYard, id, &ref, func() (any, error) {
		var row models.Yard
		if err := c.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
			return nil, err
		}
		return YardRef{ID: row.ID, Name: row.Name, Address: row.Address, Latitude: row.Latitude, Longitude: row.Longitude}, nil
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (c *Cache) load(ctx context.Context, kind string, id uuid.UUID, dest any, fetch func() (any, error)) error {
	key := c.keyFn(kind, id.String())
	if c.store != nil {
		raw, err := c.store.Get(ctx, key)
		if err == nil {
			if jsonErr := json.Unmarshal([]byte(raw), dest); jsonErr == nil {
				return nil
			}
		}
	}

	value, err := fetch()
	if err != nil {
		return fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return err
	}
	if c.store != nil {
		// best effort; a failed write only costs a later miss
		_ = c.store.Set(ctx, key, string(raw), c.ttl)
	}
	return nil
}

type redisStore struct {
	client *redis.Client
}

func (r redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return value, err
}

func (r redisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

// MemoryStore is an in-process Store with per-key expiry.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return "", ErrMiss
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return "", ErrMiss
	}
	return item.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{value: fmt.Sprint(value)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}
