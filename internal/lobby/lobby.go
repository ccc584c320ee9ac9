// Package lobby implements rooms, invites and the game session handoff.
//
// A room is created waiting with its creator as the only member and moves to
// playing exactly once, either when a second player joins a public room or
// when an invitee accepts a private one. After that the creator registers a
// game server and the lobby relays its address to the other members; game
// traffic never passes through the lobby.
package lobby

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"playmatch/lobby/internal/presence"
	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindPublic  Kind = "public"
	KindPrivate Kind = "private"
)

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
)

// Room is a snapshot of one room. Members lists the creator first.
type Room struct {
	Name      string
	Kind      Kind
	Status    RoomStatus
	Creator   string
	Members   []string
	Invited   []string
	CreatedAt time.Time
	StartedAt time.Time
}

func (r *Room) clone() Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.Invited = slices.Clone(r.Invited)
	return c
}

func (r *Room) isMember(username string) bool {
	return slices.Contains(r.Members, username)
}

// GameServer is where the room creator accepts the game connection.
type GameServer struct {
	Address  string
	Port     int
	GameType string
}

// Presence is the part of the presence store the lobby needs.
type Presence interface {
	Status(username string) (presence.Status, bool)
	SetStatus(status presence.Status, usernames ...string)
	Notify(username string, msg wire.Reply) bool
}

// Broadcaster reaches every connected client.
type Broadcaster interface {
	Broadcast(v any)
}

// push is a message to deliver once the lobby lock is released. An empty
// recipient means everyone.
type push struct {
	to  string
	msg wire.Reply
}

type Options struct {
	// RoomTTL is how long a playing room lives before Sweep removes it.
	// Zero disables expiry.
	RoomTTL time.Duration
	Now     func() time.Time
}

type Lobby struct {
	presence    Presence
	broadcaster Broadcaster
	ttl         time.Duration
	now         func() time.Time
	log         *logrus.Entry

	mu      sync.Mutex
	rooms   map[string]*Room
	servers map[string]GameServer
}

func New(p Presence, b Broadcaster, opts Options) *Lobby {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Lobby{
		presence:    p,
		broadcaster: b,
		ttl:         opts.RoomTTL,
		now:         now,
		log:         logrus.WithField("component", "lobby"),
		rooms:       make(map[string]*Room),
		servers:     make(map[string]GameServer),
	}
}

// apply runs fn under the lobby lock and delivers the pushes it produced
// after unlocking, whether or not fn failed.
func (l *Lobby) apply(fn func() ([]push, error)) error {
	l.mu.Lock()
	pushes, err := fn()
	l.mu.Unlock()

	for _, p := range pushes {
		if p.to == "" {
			if l.broadcaster != nil {
				l.broadcaster.Broadcast(p.msg)
			}
			continue
		}
		if !l.presence.Notify(p.to, p.msg) {
			l.log.WithFields(logrus.Fields{"to": p.to, "status": p.msg.Status}).Debug("Push not delivered")
		}
	}
	return err
}

func (l *Lobby) requireIdle(username string) error {
	status, ok := l.presence.Status(username)
	if !ok {
		return ErrNotLoggedIn
	}
	if status != presence.StatusIdle {
		return ErrNotIdle
	}
	return nil
}

func (l *Lobby) startLocked(room *Room) {
	room.Status = RoomPlaying
	room.StartedAt = l.now()
	l.presence.SetStatus(presence.StatusPlaying, room.Members...)
	l.log.WithFields(logrus.Fields{"room": room.Name, "members": room.Members}).Info("Room is playing")
}

// removeLocked deletes room and its game server, returns online members to
// idle and answers every pending invite with a rejection.
func (l *Lobby) removeLocked(room *Room, reason string) []push {
	delete(l.rooms, room.Name)
	delete(l.servers, room.Name)
	l.presence.SetStatus(presence.StatusIdle, room.Members...)

	var pushes []push
	for _, invitee := range room.Invited {
		pushes = append(pushes, rejection(room, invitee))
	}
	for _, member := range room.Members {
		pushes = append(pushes, push{to: member, msg: wire.Reply{
			Status:   wire.StatusNotification,
			RoomName: room.Name,
			Message:  fmt.Sprintf("room %s closed: %s", room.Name, reason),
		}})
	}
	l.log.WithFields(logrus.Fields{"room": room.Name, "reason": reason}).Info("Room removed")
	return pushes
}

func rejection(room *Room, player string) push {
	return push{to: room.Creator, msg: wire.Reply{
		Status:   wire.StatusInviteRejected,
		RoomName: room.Name,
		Player:   player,
	}}
}

func acceptance(room *Room, player string) push {
	return push{to: room.Creator, msg: wire.Reply{
		Status:   wire.StatusInviteAccepted,
		RoomName: room.Name,
		Player:   player,
	}}
}

// CreateRoom opens a waiting room with creator as its only member.
func (l *Lobby) CreateRoom(creator, name string, kind Kind) error {
	if name == "" || (kind != KindPublic && kind != KindPrivate) {
		return ErrInvalidRoom
	}
	return l.apply(func() ([]push, error) {
		if err := l.requireIdle(creator); err != nil {
			return nil, err
		}
		if _, ok := l.rooms[name]; ok {
			return nil, ErrRoomExists
		}

		l.rooms[name] = &Room{
			Name:      name,
			Kind:      kind,
			Status:    RoomWaiting,
			Creator:   creator,
			Members:   []string{creator},
			CreatedAt: l.now(),
		}
		l.presence.SetStatus(presence.StatusInRoom, creator)

		return []push{{msg: wire.Reply{
			Status:  wire.StatusNotification,
			Message: fmt.Sprintf("%s created %s room %s", creator, kind, name),
		}}}, nil
	})
}

// JoinRoom adds username to a waiting public room, which starts playing.
func (l *Lobby) JoinRoom(name, username string) error {
	return l.apply(func() ([]push, error) {
		if err := l.requireIdle(username); err != nil {
			return nil, err
		}
		room, ok := l.rooms[name]
		if !ok {
			return nil, ErrRoomNotFound
		}
		if room.Kind != KindPublic {
			return nil, ErrNotPublic
		}
		if room.Status != RoomWaiting {
			return nil, ErrRoomNotWaiting
		}

		room.Members = append(room.Members, username)
		if len(room.Members) < 2 {
			l.presence.SetStatus(presence.StatusInRoom, username)
			return nil, nil
		}
		l.startLocked(room)
		return []push{acceptance(room, username)}, nil
	})
}

// InvitePlayer records an invite to a waiting private room and pushes it to
// the invitee.
func (l *Lobby) InvitePlayer(name, inviter, invitee string) error {
	return l.apply(func() ([]push, error) {
		room, ok := l.rooms[name]
		if !ok {
			return nil, ErrRoomNotFound
		}
		if room.Kind != KindPrivate {
			return nil, ErrNotPrivate
		}
		if room.Status != RoomWaiting {
			return nil, ErrRoomNotWaiting
		}
		if !room.isMember(inviter) {
			return nil, ErrNotMember
		}
		if invitee == inviter {
			return nil, ErrSelfInvite
		}
		if slices.Contains(room.Invited, invitee) {
			return nil, ErrAlreadyInvited
		}
		if status, ok := l.presence.Status(invitee); !ok || status != presence.StatusIdle {
			return nil, ErrInviteeNotIdle
		}

		room.Invited = append(room.Invited, invitee)
		return []push{{to: invitee, msg: wire.Reply{
			Status:   wire.StatusInvite,
			RoomName: name,
			Inviter:  inviter,
		}}}, nil
	})
}

// RespondToInvite consumes username's invite. Whatever happens, the creator
// is told exactly once whether the invite was accepted or rejected.
func (l *Lobby) RespondToInvite(name, username string, accept bool) error {
	return l.apply(func() ([]push, error) {
		room, ok := l.rooms[name]
		if !ok {
			return nil, ErrRoomNotFound
		}
		idx := slices.Index(room.Invited, username)
		if idx < 0 {
			return nil, ErrNotInvited
		}
		room.Invited = slices.Delete(room.Invited, idx, idx+1)

		if !accept {
			return []push{rejection(room, username)}, nil
		}
		if room.Status != RoomWaiting {
			return []push{rejection(room, username)}, ErrRoomNotWaiting
		}
		if err := l.requireIdle(username); err != nil {
			return []push{rejection(room, username)}, err
		}

		room.Members = append(room.Members, username)
		l.startLocked(room)
		return []push{acceptance(room, username)}, nil
	})
}

// PublicRooms returns every public room keyed by name. Private rooms are
// never listed.
func (l *Lobby) PublicRooms() map[string]Room {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Room)
	for name, room := range l.rooms {
		if room.Kind == KindPublic {
			out[name] = room.clone()
		}
	}
	return out
}

// Room returns a snapshot of the named room.
func (l *Lobby) Room(name string) (Room, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[name]
	if !ok {
		return Room{}, false
	}
	return room.clone(), true
}

// SetGameServer records where the creator is hosting the game and pushes
// game_start to the other members. It succeeds once per room.
func (l *Lobby) SetGameServer(name, username string, server GameServer) error {
	if server.Address == "" || server.Port < 1 || server.Port > 65535 || server.GameType == "" {
		return ErrInvalidGameServer
	}
	return l.apply(func() ([]push, error) {
		room, ok := l.rooms[name]
		if !ok {
			return nil, ErrRoomNotFound
		}
		if room.Creator != username {
			return nil, ErrNotCreator
		}
		if room.Status != RoomPlaying {
			return nil, ErrRoomNotPlaying
		}
		if _, ok := l.servers[name]; ok {
			return nil, ErrGameServerSet
		}

		l.servers[name] = server
		l.log.WithFields(logrus.Fields{
			"room": name, "address": server.Address, "port": server.Port, "game": server.GameType,
		}).Info("Game server registered")

		var pushes []push
		for _, member := range room.Members {
			if member == room.Creator {
				continue
			}
			pushes = append(pushes, push{to: member, msg: wire.Reply{
				Status:   wire.StatusGameStart,
				RoomName: name,
				IP:       server.Address,
				Port:     server.Port,
				GameType: server.GameType,
			}})
		}
		return pushes, nil
	})
}

// GetGameServer returns the record set for the room.
func (l *Lobby) GetGameServer(name string) (GameServer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	server, ok := l.servers[name]
	if !ok {
		return GameServer{}, ErrGameServerNotFound
	}
	return server, nil
}

// CloseRoom tears a room down on behalf of one of its members, typically
// once the game session is over.
func (l *Lobby) CloseRoom(name, username string) error {
	return l.apply(func() ([]push, error) {
		room, ok := l.rooms[name]
		if !ok {
			return nil, ErrRoomNotFound
		}
		if !room.isMember(username) {
			return nil, ErrNotMember
		}
		return l.removeLocked(room, "closed by "+username), nil
	})
}

// Leave cleans up after username went offline. Call it after the presence
// entry is gone so the user can no longer be invited. Rooms the user created
// are removed; a playing room the user only joined stays while another
// member is online.
func (l *Lobby) Leave(username string) {
	l.apply(func() ([]push, error) {
		var pushes []push
		for _, name := range l.sortedNamesLocked() {
			room := l.rooms[name]

			if idx := slices.Index(room.Invited, username); idx >= 0 {
				room.Invited = slices.Delete(room.Invited, idx, idx+1)
				pushes = append(pushes, rejection(room, username))
			}
			if !room.isMember(username) {
				continue
			}

			// the creator hosts the game, so nothing is left to play without them
			if room.Status == RoomWaiting || room.Creator == username || !l.anyOnlineLocked(room) {
				pushes = append(pushes, l.removeLocked(room, username+" left")...)
				continue
			}
			for _, member := range room.Members {
				if member == username {
					continue
				}
				pushes = append(pushes, push{to: member, msg: wire.Reply{
					Status:   wire.StatusNotification,
					RoomName: name,
					Message:  fmt.Sprintf("%s disconnected from room %s", username, name),
				}})
			}
		}
		return pushes, nil
	})
}

func (l *Lobby) anyOnlineLocked(room *Room) bool {
	for _, member := range room.Members {
		if _, ok := l.presence.Status(member); ok {
			return true
		}
	}
	return false
}

func (l *Lobby) sortedNamesLocked() []string {
	names := make([]string, 0, len(l.rooms))
	for name := range l.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sweep removes playing rooms older than the room TTL and returns how many
// were removed.
func (l *Lobby) Sweep(now time.Time) int {
	if l.ttl <= 0 {
		return 0
	}
	removed := 0
	l.apply(func() ([]push, error) {
		var pushes []push
		for _, name := range l.sortedNamesLocked() {
			room := l.rooms[name]
			if room.Status == RoomPlaying && now.Sub(room.StartedAt) >= l.ttl {
				pushes = append(pushes, l.removeLocked(room, "expired")...)
				removed++
			}
		}
		return pushes, nil
	})
	return removed
}

// RunJanitor sweeps expired rooms every interval until ctx is done.
func (l *Lobby) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || l.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(l.now()); n > 0 {
				l.log.WithField("rooms", n).Info("Swept expired rooms")
			}
		}
	}
}
