package state

import "sync"

// Store holds the latest state snapshot per user for the lifetime of the
// process. Snapshots are copied on the way in and on the way out.
//
// The mutex only protects the map. Two concurrent turns for the same user
// still race and the last Save wins.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*State
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]*State)}
}

// Save replaces the snapshot for userID with a copy of s.
// An empty userID is ignored.
func (st *Store) Save(userID string, s *State) {
	if userID == "" || s == nil {
		return
	}
	snap := s.Clone()

	st.mu.Lock()
	st.snapshots[userID] = snap
	st.mu.Unlock()
}

// Get returns a copy of the snapshot for userID, or an empty state.
func (st *Store) Get(userID string) *State {
	st.mu.RLock()
	snap, ok := st.snapshots[userID]
	st.mu.RUnlock()
	if !ok {
		return New()
	}
	return snap.Clone()
}

// Delete drops the snapshot for userID.
func (st *Store) Delete(userID string) {
	st.mu.Lock()
	delete(st.snapshots, userID)
	st.mu.Unlock()
}

// Len returns the number of users with a snapshot.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.snapshots)
}
