// Package memory is an in-process credential store for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/afromart/gate"
)

// Store implements gate.UserStore over maps guarded by one lock.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]gate.User
	byUsername map[string]int64
	now        func() time.Time
}

var _ gate.UserStore = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[int64]gate.User),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, u gate.NewUser) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[u.Username]; ok {
		return 0, gate.ErrUsernameTaken
	}
	s.nextID++
	id := s.nextID
	s.users[id] = gate.User{
		ID:           id,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Staff:        u.Staff,
		DateJoined:   s.now().UTC(),
	}
	s.byUsername[u.Username] = id
	return id, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (gate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return gate.User{}, gate.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (gate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return gate.User{}, gate.ErrUserNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *Store) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byUsername[username]
	return ok, nil
}

func (s *Store) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// FindActiveUserByEmail returns the oldest active account holding email.
func (s *Store) FindActiveUserByEmail(_ context.Context, email string) (gate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id, u := range s.users {
		if u.Active && u.Email == email {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return gate.User{}, gate.ErrUserNotFound
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return copyUser(s.users[ids[0]]), nil
}

func (s *Store) Activate(_ context.Context, id int64) error {
	return s.update(id, func(u *gate.User) { u.Active = true })
}

func (s *Store) SetPasswordHash(_ context.Context, id int64, hash string) error {
	return s.update(id, func(u *gate.User) { u.PasswordHash = hash })
}

func (s *Store) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	at = at.UTC()
	return s.update(id, func(u *gate.User) { u.LastLogin = &at })
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) update(id int64, fn func(*gate.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return gate.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func copyUser(u gate.User) gate.User {
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}
