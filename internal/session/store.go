// Package session keeps the per-user drafting conversations and drives
// them from draft to saved note.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/suykerbuyk/focusbot/internal/classify"
)

var (
	ErrSessionExists = errors.New("session already exists")
	ErrNoSession     = errors.New("no session")
	ErrOriginChanged = errors.New("session origin cannot change")
)

// ChannelRef identifies the chat message showing a draft.
type ChannelRef struct {
	ChatID    int64
	MessageID int64
}

// Session is one user's draft in progress.
type Session struct {
	UserID  int64
	Title   string
	Tags    []string
	Body    string
	Origin  ChannelRef
	History []classify.Turn

	// SavedPath is set once the note file exists, so a save retried after
	// a failed confirmation does not write a second note.
	SavedPath string

	Created time.Time
	Updated time.Time
}

func (s Session) clone() Session {
	s.Tags = append([]string(nil), s.Tags...)
	s.History = append([]classify.Turn(nil), s.History...)
	return s
}

// State returns the classifier view of the session.
func (s Session) State() *classify.State {
	c := s.clone()
	return &classify.State{Title: c.Title, Tags: c.Tags, Body: c.Body, History: c.History}
}

// Store maps user IDs to at most one Session. Values are copied in and
// out; callers serialize work per user with Lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	byRef    map[ChannelRef]int64

	locks keyedMutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]Session),
		byRef:    make(map[ChannelRef]int64),
		locks:    keyedMutex{locks: make(map[int64]*refLock)},
	}
}

// Lock serializes all work on userID's session until the returned func
// is called. Different users never contend.
func (s *Store) Lock(userID int64) (unlock func()) {
	return s.locks.lock(userID)
}

func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

func (s *Store) Create(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.UserID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.UserID] = sess.clone()
	s.byRef[sess.Origin] = sess.UserID
	return nil
}

func (s *Store) Update(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.UserID]
	if !ok {
		return ErrNoSession
	}
	if cur.Origin != sess.Origin {
		return ErrOriginChanged
	}
	s.sessions[sess.UserID] = sess.clone()
	return nil
}

// Delete removes userID's session and reports whether one existed.
func (s *Store) Delete(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	delete(s.sessions, userID)
	delete(s.byRef, sess.Origin)
	return true
}

// FindByRef returns the user whose draft is shown at ref.
func (s *Store) FindByRef(ref ChannelRef) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[ref]
	return id, ok
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refLock
}

func (k *keyedMutex) lock(key int64) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			k.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}
