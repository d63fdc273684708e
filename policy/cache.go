/*
   Copyright 2015 Erik Karulf

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       https://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package policy

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cesanta/glog"
	"github.com/dchest/uniuri"
	"golang.org/x/sync/singleflight"

	"github.com/ekarulf/authchain/api"
)

const DefaultCacheMaxEntries = 4096

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl,omitempty"`
	MaxEntries int           `yaml:"max_entries,omitempty"`
	// SuccessOnly keeps denied verdicts out of the cache.
	SuccessOnly bool `yaml:"success_only,omitempty"`
}

// Cache memoizes downstream verdicts for a fixed period, so repeats of the
// same credentials are answered without another verifier round trip.
type Cache struct {
	ttl         time.Duration
	maxEntries  int
	successOnly bool
	salt        string

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // least recently used at the front
}

type cacheEntry struct {
	key     string
	result  bool
	expires time.Time
}

func NewCache(c CacheConfig) (*Cache, error) {
	if c.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	}
	if c.MaxEntries < 0 {
		return nil, fmt.Errorf("cache max_entries must not be negative, got %d", c.MaxEntries)
	}
	maxEntries := c.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &Cache{
		ttl:         c.TTL,
		maxEntries:  maxEntries,
		successOnly: c.SuccessOnly,
		salt:        uniuri.New(),
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}, nil
}

func (c *Cache) Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error) {
	key := c.key(user, password)
	if result, ok := c.lookup(key); ok {
		glog.V(2).Infof("Cached verdict for %s -> %t", user, result)
		return result, nil
	}
	// Concurrent misses on the same key share a single downstream call.
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := next(ctx, user, password)
		if err != nil {
			// Errors are never cached.
			return result, err
		}
		if result || !c.successOnly {
			c.store(key, result)
		}
		return result, nil
	})
	result, _ := v.(bool)
	return result, err
}

func (c *Cache) Name() string {
	return "cache"
}

// Len returns the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// key hashes the credentials with the per-instance salt. The parts are
// length-framed so distinct pairs cannot collide by concatenation.
func (c *Cache) key(user string, password api.PasswordString) string {
	h := sha256.New()
	var frame [8]byte
	h.Write([]byte(c.salt))
	binary.BigEndian.PutUint64(frame[:], uint64(len(user)))
	h.Write(frame[:])
	h.Write([]byte(user))
	binary.BigEndian.PutUint64(frame[:], uint64(len(password)))
	h.Write(frame[:])
	h.Write([]byte(password))
	return string(h.Sum(nil))
}

func (c *Cache) lookup(key string) (result, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return false, false
	}
	entry := elem.Value.(*cacheEntry)
	// There is no sweeper; expired entries are dropped on sight.
	if time.Now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return false, false
	}
	c.order.MoveToBack(elem)
	return entry.result, true
}

func (c *Cache) store(key string, result bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires := time.Now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.result = result
		entry.expires = expires
		c.order.MoveToBack(elem)
		return
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, result: result, expires: expires})
	for len(c.entries) > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
