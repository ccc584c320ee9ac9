package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"playmatch/lobby/internal/presence"
	"playmatch/lobby/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu       sync.Mutex
	statuses map[string]presence.Status
	pushes   map[string][]wire.Reply
}

func newFakePresence(online ...string) *fakePresence {
	p := &fakePresence{
		statuses: make(map[string]presence.Status),
		pushes:   make(map[string][]wire.Reply),
	}
	for _, u := range online {
		p.statuses[u] = presence.StatusIdle
	}
	return p
}

func (p *fakePresence) Status(username string) (presence.Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.statuses[username]
	return s, ok
}

func (p *fakePresence) SetStatus(status presence.Status, usernames ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range usernames {
		if _, ok := p.statuses[u]; ok {
			p.statuses[u] = status
		}
	}
}

func (p *fakePresence) Notify(username string, msg wire.Reply) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.statuses[username]; !ok {
		return false
	}
	p.pushes[username] = append(p.pushes[username], msg)
	return true
}

func (p *fakePresence) logout(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.statuses, username)
}

func (p *fakePresence) received(username string, status string) []wire.Reply {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []wire.Reply
	for _, msg := range p.pushes[username] {
		if msg.Status == status {
			out = append(out, msg)
		}
	}
	return out
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []any
}

func (b *fakeBroadcaster) Broadcast(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, v)
}

func newTestLobby(online ...string) (*Lobby, *fakePresence, *fakeBroadcaster) {
	p := newFakePresence(online...)
	b := &fakeBroadcaster{}
	return New(p, b, Options{RoomTTL: time.Hour}), p, b
}

func TestPublicRoomMatch(t *testing.T) {
	l, p, b := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	status, _ := p.Status("alice")
	assert.Equal(t, presence.StatusInRoom, status)
	assert.Len(t, b.sent, 1, "room creation is announced")

	rooms := l.PublicRooms()
	require.Contains(t, rooms, "r1")
	assert.Equal(t, RoomWaiting, rooms["r1"].Status)
	assert.Equal(t, "alice", rooms["r1"].Creator)

	require.NoError(t, l.JoinRoom("r1", "bob"))

	room, ok := l.Room("r1")
	require.True(t, ok)
	assert.Equal(t, RoomPlaying, room.Status)
	assert.Equal(t, []string{"alice", "bob"}, room.Members)
	for _, u := range []string{"alice", "bob"} {
		s, _ := p.Status(u)
		assert.Equal(t, presence.StatusPlaying, s, u)
	}

	accepted := p.received("alice", wire.StatusInviteAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, "r1", accepted[0].RoomName)
	assert.Equal(t, "bob", accepted[0].Player)
}

func TestPrivateRoomInviteAccepted(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "secret", KindPrivate))
	assert.NotContains(t, l.PublicRooms(), "secret")

	require.NoError(t, l.InvitePlayer("secret", "alice", "bob"))
	invites := p.received("bob", wire.StatusInvite)
	require.Len(t, invites, 1)
	assert.Equal(t, "secret", invites[0].RoomName)
	assert.Equal(t, "alice", invites[0].Inviter)

	require.NoError(t, l.RespondToInvite("secret", "bob", true))
	room, _ := l.Room("secret")
	assert.Equal(t, RoomPlaying, room.Status)
	assert.Len(t, p.received("alice", wire.StatusInviteAccepted), 1)
	assert.Empty(t, p.received("alice", wire.StatusInviteRejected))
}

func TestInviteRejected(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "secret", KindPrivate))
	require.NoError(t, l.InvitePlayer("secret", "alice", "bob"))
	require.NoError(t, l.RespondToInvite("secret", "bob", false))

	rejected := p.received("alice", wire.StatusInviteRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "bob", rejected[0].Player)

	room, _ := l.Room("secret")
	assert.Equal(t, RoomWaiting, room.Status)
	assert.ErrorIs(t, l.RespondToInvite("secret", "bob", true), ErrNotInvited)
}

func TestCreateRoomErrors(t *testing.T) {
	l, _, _ := newTestLobby("alice", "bob")

	assert.ErrorIs(t, l.CreateRoom("ghost", "r", KindPublic), ErrNotLoggedIn)
	assert.ErrorIs(t, l.CreateRoom("alice", "", KindPublic), ErrInvalidRoom)
	assert.ErrorIs(t, l.CreateRoom("alice", "r", Kind("secret")), ErrInvalidRoom)

	require.NoError(t, l.CreateRoom("alice", "r", KindPublic))
	assert.ErrorIs(t, l.CreateRoom("alice", "r2", KindPublic), ErrNotIdle)
	assert.ErrorIs(t, l.CreateRoom("bob", "r", KindPublic), ErrRoomExists)
}

func TestJoinRoomErrors(t *testing.T) {
	l, _, _ := newTestLobby("alice", "bob", "carol")

	assert.ErrorIs(t, l.JoinRoom("missing", "bob"), ErrRoomNotFound)
	assert.ErrorIs(t, l.JoinRoom("missing", "ghost"), ErrNotLoggedIn)

	require.NoError(t, l.CreateRoom("alice", "priv", KindPrivate))
	assert.ErrorIs(t, l.JoinRoom("priv", "bob"), ErrNotPublic)

	require.NoError(t, l.CreateRoom("bob", "pub", KindPublic))
	require.NoError(t, l.JoinRoom("pub", "carol"))

	// a playing room never goes back to waiting
	require.NoError(t, l.CloseRoom("pub", "carol"))
	require.NoError(t, l.CreateRoom("carol", "pub", KindPublic))
	require.NoError(t, l.JoinRoom("pub", "bob"))
	l.presence.SetStatus(presence.StatusIdle, "bob")
	assert.ErrorIs(t, l.JoinRoom("pub", "bob"), ErrRoomNotWaiting)
}

func TestInviteErrors(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob", "carol")

	require.NoError(t, l.CreateRoom("alice", "priv", KindPrivate))
	assert.ErrorIs(t, l.InvitePlayer("nope", "alice", "bob"), ErrRoomNotFound)
	assert.ErrorIs(t, l.InvitePlayer("priv", "carol", "bob"), ErrNotMember)
	assert.ErrorIs(t, l.InvitePlayer("priv", "alice", "alice"), ErrSelfInvite)
	assert.ErrorIs(t, l.InvitePlayer("priv", "alice", "ghost"), ErrInviteeNotIdle)

	require.NoError(t, l.InvitePlayer("priv", "alice", "bob"))
	assert.ErrorIs(t, l.InvitePlayer("priv", "alice", "bob"), ErrAlreadyInvited)

	p.SetStatus(presence.StatusInRoom, "carol")
	assert.ErrorIs(t, l.InvitePlayer("priv", "alice", "carol"), ErrInviteeNotIdle)

	require.NoError(t, l.CreateRoom("bob", "pub", KindPublic))
	assert.ErrorIs(t, l.InvitePlayer("pub", "bob", "alice"), ErrNotPrivate)
}

func TestAcceptAfterRoomStartedIsRejected(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob", "carol")

	require.NoError(t, l.CreateRoom("alice", "priv", KindPrivate))
	require.NoError(t, l.InvitePlayer("priv", "alice", "bob"))
	require.NoError(t, l.InvitePlayer("priv", "alice", "carol"))

	require.NoError(t, l.RespondToInvite("priv", "bob", true))
	assert.ErrorIs(t, l.RespondToInvite("priv", "carol", true), ErrRoomNotWaiting)

	rejected := p.received("alice", wire.StatusInviteRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "carol", rejected[0].Player)

	room, _ := l.Room("priv")
	assert.Equal(t, []string{"alice", "bob"}, room.Members)
	s, _ := p.Status("carol")
	assert.Equal(t, presence.StatusIdle, s)
}

func TestAcceptWhileBusyIsRejected(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "priv", KindPrivate))
	require.NoError(t, l.InvitePlayer("priv", "alice", "bob"))
	require.NoError(t, l.CreateRoom("bob", "other", KindPublic))

	assert.ErrorIs(t, l.RespondToInvite("priv", "bob", true), ErrNotIdle)
	assert.Len(t, p.received("alice", wire.StatusInviteRejected), 1)
}

func TestGameServerHandoff(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")
	server := GameServer{Address: "10.0.0.5", Port: 40001, GameType: "tictactoe"}

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	assert.ErrorIs(t, l.SetGameServer("r1", "alice", server), ErrRoomNotPlaying)
	require.NoError(t, l.JoinRoom("r1", "bob"))

	assert.ErrorIs(t, l.SetGameServer("r1", "bob", server), ErrNotCreator)
	assert.ErrorIs(t, l.SetGameServer("nope", "alice", server), ErrRoomNotFound)
	assert.ErrorIs(t, l.SetGameServer("r1", "alice", GameServer{Address: "x", Port: 0, GameType: "t"}), ErrInvalidGameServer)
	assert.ErrorIs(t, l.SetGameServer("r1", "alice", GameServer{Address: "x", Port: 70000, GameType: "t"}), ErrInvalidGameServer)

	_, err := l.GetGameServer("r1")
	assert.ErrorIs(t, err, ErrGameServerNotFound)

	require.NoError(t, l.SetGameServer("r1", "alice", server))
	assert.ErrorIs(t, l.SetGameServer("r1", "alice", server), ErrGameServerSet)

	got, err := l.GetGameServer("r1")
	require.NoError(t, err)
	assert.Equal(t, server, got)

	starts := p.received("bob", wire.StatusGameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, "r1", starts[0].RoomName)
	assert.Equal(t, "10.0.0.5", starts[0].IP)
	assert.Equal(t, 40001, starts[0].Port)
	assert.Equal(t, "tictactoe", starts[0].GameType)
	assert.Empty(t, p.received("alice", wire.StatusGameStart))
}

func TestCloseRoomReturnsMembersToIdle(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob", "carol")

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	require.NoError(t, l.JoinRoom("r1", "bob"))
	require.NoError(t, l.SetGameServer("r1", "alice", GameServer{Address: "h", Port: 1, GameType: "g"}))

	assert.ErrorIs(t, l.CloseRoom("r1", "carol"), ErrNotMember)
	require.NoError(t, l.CloseRoom("r1", "bob"))

	_, ok := l.Room("r1")
	assert.False(t, ok)
	_, err := l.GetGameServer("r1")
	assert.ErrorIs(t, err, ErrGameServerNotFound)
	for _, u := range []string{"alice", "bob"} {
		s, _ := p.Status(u)
		assert.Equal(t, presence.StatusIdle, s, u)
	}
	assert.ErrorIs(t, l.CloseRoom("r1", "bob"), ErrRoomNotFound)

	// the name is free again
	require.NoError(t, l.CreateRoom("carol", "r1", KindPublic))
}

func TestLeaveDropsWaitingRoomAndPendingInvites(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob", "carol")

	require.NoError(t, l.CreateRoom("alice", "priv", KindPrivate))
	require.NoError(t, l.InvitePlayer("priv", "alice", "bob"))
	require.NoError(t, l.CreateRoom("carol", "carols", KindPrivate))
	require.NoError(t, l.InvitePlayer("carols", "carol", "bob"))

	p.logout("bob")
	l.Leave("bob")

	assert.Len(t, p.received("alice", wire.StatusInviteRejected), 1)
	assert.Len(t, p.received("carol", wire.StatusInviteRejected), 1)

	p.logout("alice")
	l.Leave("alice")
	_, ok := l.Room("priv")
	assert.False(t, ok)
	_, ok = l.Room("carols")
	assert.True(t, ok)
}

func TestLeavePlayingRoom_CreatorGone(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	require.NoError(t, l.JoinRoom("r1", "bob"))
	require.NoError(t, l.SetGameServer("r1", "alice", GameServer{Address: "10.0.0.1", Port: 4000, GameType: "ttt"}))

	p.logout("alice")
	l.Leave("alice")

	_, ok := l.Room("r1")
	assert.False(t, ok, "room goes with its host")
	_, err := l.GetGameServer("r1")
	assert.ErrorIs(t, err, ErrGameServerNotFound)
	s, _ := p.Status("bob")
	assert.Equal(t, presence.StatusIdle, s)
	assert.NotEmpty(t, p.received("bob", wire.StatusNotification))

	require.NoError(t, l.CreateRoom("bob", "r2", KindPublic), "bob is free to play again")
}

func TestLeavePlayingRoom_GuestGone(t *testing.T) {
	l, p, _ := newTestLobby("alice", "bob")

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	require.NoError(t, l.JoinRoom("r1", "bob"))

	p.logout("bob")
	l.Leave("bob")
	_, ok := l.Room("r1")
	assert.True(t, ok, "room stays while the host is online")
	assert.NotEmpty(t, p.received("alice", wire.StatusNotification))

	p.logout("alice")
	l.Leave("alice")
	_, ok = l.Room("r1")
	assert.False(t, ok)
}

func TestSweepExpiresPlayingRooms(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newFakePresence("alice", "bob", "carol")
	l := New(p, nil, Options{RoomTTL: time.Minute, Now: func() time.Time { return now }})

	require.NoError(t, l.CreateRoom("alice", "r1", KindPublic))
	require.NoError(t, l.JoinRoom("r1", "bob"))
	require.NoError(t, l.CreateRoom("carol", "waiting", KindPublic))

	assert.Equal(t, 0, l.Sweep(now.Add(30*time.Second)))
	assert.Equal(t, 1, l.Sweep(now.Add(time.Minute)))

	_, ok := l.Room("r1")
	assert.False(t, ok)
	_, ok = l.Room("waiting")
	assert.True(t, ok, "waiting rooms do not expire")

	s, _ := p.Status("bob")
	assert.Equal(t, presence.StatusIdle, s)
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	l, _, _ := newTestLobby()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.RunJanitor(ctx, 10*time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestConcurrentJoinOnlyOneWins(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4", "p5"}
	l, _, _ := newTestLobby(append(players, "host")...)
	require.NoError(t, l.CreateRoom("host", "r", KindPublic))

	var wg sync.WaitGroup
	errs := make(chan error, len(players))
	for _, u := range players {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			errs <- l.JoinRoom("r", u)
		}(u)
	}
	wg.Wait()
	close(errs)

	joined := 0
	for err := range errs {
		if err == nil {
			joined++
		} else {
			assert.ErrorIs(t, err, ErrRoomNotWaiting)
		}
	}
	assert.Equal(t, 1, joined)

	room, _ := l.Room("r")
	assert.Len(t, room.Members, 2)
}
