package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultIdleTTL     = 2 * time.Hour
	defaultMaxSessions = 1024
)

// Registry holds live sessions keyed by session id with LRU and idle TTL
// eviction. An evicted session is simply forgotten; the next turn for that
// id starts from an empty state. Sessions with a running turn are never
// evicted, so the registry may briefly hold more than its limit.
type Registry struct {
	mu sync.Mutex

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	lru *list.List               // front=MRU
	m   map[string]*list.Element // id -> element(Value=*entry)
}

type entry struct {
	s        *Session
	lastUsed time.Time
}

// NewRegistry creates a registry. Non-positive limits fall back to defaults.
func NewRegistry(ttl time.Duration, maxSessions int) *Registry {
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &Registry{
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		lru:         list.New(),
		m:           map[string]*list.Element{},
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GetOrCreate returns the live session for id, creating it when missing.
// An empty id gets a generated one. The second result reports creation.
func (r *Registry) GetOrCreate(id, userID string) (*Session, bool) {
	if id == "" {
		id = NewID()
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked(now)

	if e := r.m[id]; e != nil {
		it := e.Value.(*entry)
		it.lastUsed = now
		r.lru.MoveToFront(e)
		return it.s, false
	}

	s := New(id, userID, now)
	r.m[id] = r.lru.PushFront(&entry{s: s, lastUsed: now})
	r.evictOverLimitLocked()
	return s, true
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked(now)

	e := r.m[id]
	if e == nil {
		return nil, false
	}
	it := e.Value.(*entry)
	it.lastUsed = now
	r.lru.MoveToFront(e)
	return it.s, true
}

// Delete drops the live session for id.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.m[id]; e != nil {
		r.deleteElemLocked(e)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

func (r *Registry) evictExpiredLocked(now time.Time) {
	for e := r.lru.Back(); e != nil; {
		prev := e.Prev()
		it := e.Value.(*entry)
		if now.Sub(it.lastUsed) <= r.ttl {
			break
		}
		if !it.s.Busy() {
			r.deleteElemLocked(e)
		}
		e = prev
	}
}

// evictOverLimitLocked never removes the front entry, which is the session
// the caller is about to use.
func (r *Registry) evictOverLimitLocked() {
	for e := r.lru.Back(); e != nil && e != r.lru.Front() && r.lru.Len() > r.maxSessions; {
		prev := e.Prev()
		if !e.Value.(*entry).s.Busy() {
			r.deleteElemLocked(e)
		}
		e = prev
	}
}

func (r *Registry) deleteElemLocked(e *list.Element) {
	delete(r.m, e.Value.(*entry).s.ID)
	r.lru.Remove(e)
}
