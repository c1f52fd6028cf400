// Package querycache is the client-side store behind the pollers and
// optimistic mutations. Entries are keyed by resource and params
// (for example "queue?status=waiting") and carry a version that grows on
// every write.
package querycache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultGCTime is how long an entry nobody reads or watches is kept
const DefaultGCTime = 5 * time.Minute

const subscriberBuffer = 16

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is one cached query result. Version grows on every write;
// DataVersion only when Set stores data from the server.
type Entry struct {
	Data        interface{}
	Err         error
	Status      Status
	UpdatedAt   time.Time
	Version     uint64
	DataVersion uint64
	Stale       bool
}

type EventType string

const (
	EventUpdated     EventType = "updated"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
)

type Event struct {
	Key   string
	Type  EventType
	Entry Entry
}

// Snapshot is an entry as it was at one point, for Restore
type Snapshot struct {
	Key    string
	Entry  Entry
	Exists bool
}

type Cache struct {
	mu      sync.Mutex
	items   *gocache.Cache
	gcTime  time.Duration
	version uint64
	fetches uint64
	subs    map[string]map[int]chan Event
	nextSub int

	Now func() time.Time
}

// New returns a cache whose unwatched entries expire after gcTime
// (DefaultGCTime when zero)
func New(gcTime time.Duration) *Cache {
	if gcTime <= 0 {
		gcTime = DefaultGCTime
	}
	return &Cache{
		items:  gocache.New(gcTime, gcTime/2),
		gcTime: gcTime,
		subs:   map[string]map[int]chan Event{},
		Now:    time.Now,
	}
}

func (c *Cache) lookup(key string) (Entry, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return Entry{Status: StatusIdle}, false
	}
	return v.(Entry), true
}

// store writes e under key. Watched keys never expire.
func (c *Cache) store(key string, e Entry) {
	ttl := gocache.DefaultExpiration
	if len(c.subs[key]) > 0 {
		ttl = gocache.NoExpiration
	}
	c.items.Set(key, e, ttl)
}

func (c *Cache) write(key string, e Entry, typ EventType) Entry {
	c.version++
	e.Version = c.version
	c.store(key, e)
	c.publish(Event{Key: key, Type: typ, Entry: e})
	return e
}

// Get returns the entry for key. Reading keeps the entry alive for another
// gc period.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if ok {
		c.store(key, e)
	}
	return e, ok
}

// Set stores fresh data for key
func (c *Cache) Set(key string, data interface{}) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	return c.write(key, Entry{Data: data, Status: StatusSuccess, UpdatedAt: c.Now(), DataVersion: c.fetches}, EventUpdated)
}

// SetLoading flags a fetch in flight and keeps the current data
func (c *Cache) SetLoading(key string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.lookup(key)
	e.Status = StatusLoading
	return c.write(key, e, EventUpdated)
}

// SetError records a failed fetch and keeps the last good data
func (c *Cache) SetError(key string, err error) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.lookup(key)
	e.Err = err
	e.Status = StatusError
	return c.write(key, e, EventUpdated)
}

// Update replaces the data of key with fn(current data) under the cache lock.
// fn must not modify its argument in place.
func (c *Cache) Update(key string, fn func(data interface{}) interface{}) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.lookup(key)
	e.Data = fn(e.Data)
	if e.Status == StatusIdle {
		e.Status = StatusSuccess
	}
	e.UpdatedAt = c.Now()
	return c.write(key, e, EventUpdated)
}

func (c *Cache) Snapshot(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	return Snapshot{Key: key, Entry: e, Exists: ok}
}

// Restore puts a snapshot back. The restored entry gets a new version so
// readers see the change.
func (c *Cache) Restore(s Snapshot) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.Exists {
		c.items.Delete(s.Key)
		e := Entry{Status: StatusIdle}
		c.publish(Event{Key: s.Key, Type: EventRemoved, Entry: e})
		return e
	}
	return c.write(s.Key, s.Entry, EventUpdated)
}

// Rollback undoes a local change made after s was taken, as long as no
// server data arrived since (the DataVersion is unchanged). Loading, error,
// invalidation and other local updates do not count. revert computes the
// rolled back data from the snapshot data and the current data; when nil the
// snapshot data is put back. An entry that did not exist in s is removed.
// It reports whether it rolled back.
func (c *Cache) Rollback(s Snapshot, revert func(before, current interface{}) interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(s.Key)
	if ok && e.DataVersion != s.Entry.DataVersion {
		return false
	}
	if !s.Exists {
		c.items.Delete(s.Key)
		c.publish(Event{Key: s.Key, Type: EventRemoved, Entry: Entry{Status: StatusIdle}})
		return true
	}
	if !ok {
		e = s.Entry
	}
	if revert != nil {
		e.Data = revert(s.Entry.Data, e.Data)
	} else {
		e.Data = s.Entry.Data
	}
	e.UpdatedAt = c.Now()
	c.write(s.Key, e, EventUpdated)
	return true
}

// Invalidate marks every entry whose key starts with prefix as stale and
// notifies its subscribers. It returns the keys it touched.
func (c *Cache) Invalidate(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key := range c.items.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		e, ok := c.lookup(key)
		if !ok {
			continue
		}
		e.Stale = true
		c.write(key, e, EventInvalidated)
		keys = append(keys, key)
	}
	return keys
}

func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(key)
	c.publish(Event{Key: key, Type: EventRemoved, Entry: Entry{Status: StatusIdle}})
}

// Keys lists the live keys
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	return keys
}

// Subscribe streams the events of key until cancel is called. A subscriber
// that falls more than a few events behind misses the extra ones.
func (c *Cache) Subscribe(key string) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	if c.subs[key] == nil {
		c.subs[key] = map[int]chan Event{}
	}
	c.subs[key][id] = ch
	if e, ok := c.lookup(key); ok {
		c.store(key, e)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs[key], id)
			if len(c.subs[key]) == 0 {
				delete(c.subs, key)
				if e, ok := c.lookup(key); ok {
					c.store(key, e)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// publish fans ev out without blocking. Callers hold mu.
func (c *Cache) publish(ev Event) {
	for _, ch := range c.subs[ev.Key] {
		select {
		case ch <- ev:
		default:
		}
	}
}
