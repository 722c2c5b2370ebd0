package net

import "sort"

// SessionStore tracks live sessions. Loop goroutine only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session)           { st.sessions[s.ID] = s }
func (st *SessionStore) Remove(id uint64)         { delete(st.sessions, id) }
func (st *SessionStore) Get(id uint64) *Session   { return st.sessions[id] }
func (st *SessionStore) Count() int               { return len(st.sessions) }
func (st *SessionStore) Raw() map[uint64]*Session { return st.sessions }

// ForEach visits sessions in id order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	ids := make([]uint64, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(st.sessions[id])
	}
}
