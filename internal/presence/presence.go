// Package presence keeps registered identities and who is online right now.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"playmatch/lobby/internal/hub"
	"playmatch/lobby/internal/models"
	"playmatch/lobby/internal/repository"
	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyExists      = errors.New("user already exists")
	ErrNoSuchUser         = errors.New("user does not exist")
	ErrWrongSecret        = errors.New("incorrect password")
	ErrInvalidCredentials = errors.New("username and password are required")
	ErrAlreadyOnline      = errors.New("user is already logged in")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusInRoom  Status = "in_room"
	StatusPlaying Status = "playing"
)

// Entry is the presence of one online user. Peer is only an association; the
// dispatcher owns the connection.
type Entry struct {
	Username string
	Status   Status
	Peer     *hub.Peer
}

// Store combines the account repository with the live presence table.
type Store struct {
	accounts repository.AccountRepository
	hub      *hub.Hub

	registerMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewStore(accounts repository.AccountRepository, h *hub.Hub) *Store {
	return &Store{
		accounts: accounts,
		hub:      h,
		entries:  make(map[string]*Entry),
	}
}

// Register creates an account. Duplicate usernames are rejected.
func (s *Store) Register(ctx context.Context, username, secret string) error {
	if username == "" || secret == "" {
		return ErrInvalidCredentials
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	_, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		return ErrAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("find account %q: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.accounts.Create(ctx, &models.Account{Username: username, PasswordHash: string(hash)})
	if errors.Is(err, repository.ErrDuplicateEntry) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create account %q: %w", username, err)
	}

	logrus.WithField("username", username).Info("Account registered")
	return nil
}

// Login checks the credentials, marks the user idle on peer and returns the
// status of every other online user.
func (s *Store) Login(ctx context.Context, username, secret string, peer *hub.Peer) (map[string]Status, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSuchUser
	}
	if err != nil {
		return nil, fmt.Errorf("find account %q: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)); err != nil {
		return nil, ErrWrongSecret
	}

	s.mu.Lock()
	if _, online := s.entries[username]; online {
		s.mu.Unlock()
		return nil, ErrAlreadyOnline
	}
	snapshot := s.snapshotLocked()
	s.entries[username] = &Entry{Username: username, Status: StatusIdle, Peer: peer}
	s.mu.Unlock()

	s.broadcast(fmt.Sprintf("%s joined the lobby", username))
	return snapshot, nil
}

// Logout removes username's entry. When peer is not nil the entry is only
// removed if it was created on that peer. Logging out a user that is not
// online is a no-op; the return value reports whether anything was removed.
func (s *Store) Logout(username string, peer *hub.Peer) bool {
	s.mu.Lock()
	entry, ok := s.entries[username]
	if !ok || (peer != nil && entry.Peer != peer) {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, username)
	s.mu.Unlock()

	s.broadcast(fmt.Sprintf("%s left the lobby", username))
	return true
}

// Status returns username's current status, if online.
func (s *Store) Status(username string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[username]
	if !ok {
		return "", false
	}
	return entry.Status, true
}

// SetStatus updates every listed user that is online.
func (s *Store) SetStatus(status Status, usernames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, username := range usernames {
		if entry, ok := s.entries[username]; ok {
			entry.Status = status
		}
	}
}

// Peer returns the connection username is logged in on.
func (s *Store) Peer(username string) (*hub.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[username]
	if !ok {
		return nil, false
	}
	return entry.Peer, true
}

// Snapshot returns the status of every online user.
func (s *Store) Snapshot() map[string]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]Status {
	out := make(map[string]Status, len(s.entries))
	for name, entry := range s.entries {
		out[name] = entry.Status
	}
	return out
}

// Notify pushes msg to username if online. Delivery failures close the peer,
// which in turn logs the user out through the dispatcher.
func (s *Store) Notify(username string, msg wire.Reply) bool {
	peer, ok := s.Peer(username)
	if !ok || peer == nil {
		return false
	}
	return peer.Send(msg) == nil
}

func (s *Store) broadcast(text string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(wire.Reply{Status: wire.StatusNotification, Message: text})
}
