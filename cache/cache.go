package cache

import (
	"sync"
	"time"
)

// DefaultTTL dipakai bila konfigurasi tidak menyebut cache_ttl.
const DefaultTTL = 5 * time.Minute

const cleanupInterval = time.Minute

type entry struct {
	value      []byte
	expiration int64 // UnixNano, 0 berarti tidak kedaluwarsa
}

// Cache menyimpan respons terserialisasi (misalnya JSON chain) dengan TTL.
// Nilai yang disimpan dan dikembalikan adalah salinan.
type Cache struct {
	items map[string]entry
	ttl   time.Duration
	mutex sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache membuat cache dan memulai goroutine pembersih. Panggil Close untuk menghentikannya.
func NewCache(ttl time.Duration) *Cache {
	return newCache(ttl, cleanupInterval)
}

func newCache(ttl, interval time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]entry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanup(interval)
	return c
}

// Set memakai TTL default cache.
func (c *Cache) Set(key string, value []byte) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *Cache) SetWithTTL(key string, value []byte, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mutex.Lock()
	c.items[key] = entry{value: stored, expiration: expiration}
	c.mutex.Unlock()
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.RLock()
	item, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	if item.expiration > 0 && time.Now().UnixNano() > item.expiration {
		c.mutex.Lock()
		// hanya hapus jika belum diganti oleh Set lain
		if current, ok := c.items[key]; ok && current.expiration == item.expiration {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return nil, false
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true
}

// Close menghentikan goroutine pembersih. Aman dipanggil lebih dari sekali.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := time.Now().UnixNano()
	for key, item := range c.items {
		if item.expiration > 0 && now > item.expiration {
			delete(c.items, key)
		}
	}
}
