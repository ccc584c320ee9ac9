package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"playmatch/lobby/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLobby serves the far end of a net.Pipe. handle runs on the read loop
// and may call reply or push any number of times.
type fakeLobby struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	requests []wire.Request
}

func newFakeLobby(t *testing.T, handle func(f *fakeLobby, req wire.Request), opts ...Option) (*Client, *fakeLobby) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	f := &fakeLobby{conn: serverConn}

	go func() {
		for req, err := range wire.Receive[wire.Request](serverConn) {
			if err != nil {
				return
			}
			f.mu.Lock()
			f.requests = append(f.requests, req)
			f.mu.Unlock()
			handle(f, req)
		}
	}()

	c := New(clientConn, opts...)
	t.Cleanup(func() {
		c.Close()
		serverConn.Close()
	})
	return c, f
}

func (f *fakeLobby) send(v wire.Reply) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = wire.Write(f.conn, v)
}

func (f *fakeLobby) reply(req wire.Request, v wire.Reply) {
	v.RequestID = req.RequestID
	f.send(v)
}

func (f *fakeLobby) received() []wire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.Request(nil), f.requests...)
}

func echoSuccess(f *fakeLobby, req wire.Request) {
	f.reply(req, wire.Reply{Status: wire.StatusSuccess, Message: req.Action})
}

func TestCall_CorrelatesOutOfOrderReplies(t *testing.T) {
	var mu sync.Mutex
	var held []wire.Request
	c, _ := newFakeLobby(t, func(f *fakeLobby, req wire.Request) {
		mu.Lock()
		defer mu.Unlock()
		held = append(held, req)
		if len(held) < 2 {
			return
		}
		// answer the second request first
		for i := len(held) - 1; i >= 0; i-- {
			f.reply(held[i], wire.Reply{Status: wire.StatusSuccess, Message: held[i].RoomName})
		}
	})

	ctx := context.Background()
	results := make(map[string]string)
	var wg sync.WaitGroup
	var resMu sync.Mutex
	for _, room := range []string{"one", "two"} {
		wg.Add(1)
		go func(room string) {
			defer wg.Done()
			reply, err := c.Call(ctx, wire.Request{Action: wire.ActionJoinRoom, RoomName: room})
			assert.NoError(t, err)
			resMu.Lock()
			results[room] = reply.Message
			resMu.Unlock()
		}(room)
	}
	wg.Wait()

	assert.Equal(t, map[string]string{"one": "one", "two": "two"}, results)
}

func TestCall_AssignsDistinctRequestIDs(t *testing.T) {
	c, f := newFakeLobby(t, echoSuccess)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Call(ctx, wire.Request{Action: wire.ActionListRooms})
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for _, req := range f.received() {
		require.NotEmpty(t, req.RequestID)
		assert.False(t, seen[req.RequestID])
		seen[req.RequestID] = true
	}
	assert.Len(t, seen, 3)
}

func TestCall_RemoteError(t *testing.T) {
	c, _ := newFakeLobby(t, func(f *fakeLobby, req wire.Request) {
		f.reply(req, wire.Reply{Status: wire.StatusError, Message: "room does not exist"})
	})

	reply, err := c.Call(context.Background(), wire.Request{Action: wire.ActionJoinRoom, RoomName: "x"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, wire.ActionJoinRoom, remote.Action)
	assert.Equal(t, "room does not exist", remote.Message)
	assert.Equal(t, wire.StatusError, reply.Status)
}

func TestCall_TimeoutKeepsConnectionUsable(t *testing.T) {
	var mu sync.Mutex
	var late []wire.Request
	c, f := newFakeLobby(t, func(f *fakeLobby, req wire.Request) {
		if req.Action == wire.ActionListGames {
			mu.Lock()
			late = append(late, req)
			mu.Unlock()
			return
		}
		echoSuccess(f, req)
	}, WithTimeout(50*time.Millisecond))

	ctx := context.Background()
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionListGames})
	assert.ErrorIs(t, err, ErrTimeout)

	// the late reply is discarded, not delivered to the next call
	mu.Lock()
	f.reply(late[0], wire.Reply{Status: wire.StatusSuccess, Message: "late"})
	mu.Unlock()

	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionListRooms})
	require.NoError(t, err)
	assert.Equal(t, wire.ActionListRooms, reply.Message)
}

func TestCall_ContextCancel(t *testing.T) {
	c, _ := newFakeLobby(t, func(*fakeLobby, wire.Request) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionListRooms})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_ConnectionClosed(t *testing.T) {
	c, f := newFakeLobby(t, func(f *fakeLobby, _ wire.Request) {
		f.conn.Close()
	})

	_, err := c.Call(context.Background(), wire.Request{Action: wire.ActionListRooms})
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client did not notice the closed connection")
	}
	_, err = c.Call(context.Background(), wire.Request{Action: wire.ActionListRooms})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPushes_DeliveredInOrderAndMayCall(t *testing.T) {
	got := make(chan string, 8)
	var c *Client
	var ready sync.WaitGroup
	ready.Add(1)

	c, f := newFakeLobby(t, echoSuccess, WithPushHandler(func(msg wire.Reply) {
		ready.Wait()
		if msg.Status == wire.StatusInvite {
			// answering from inside the handler must not deadlock
			err := c.RespondToInvite(context.Background(), msg.RoomName, true)
			assert.NoError(t, err)
		}
		got <- msg.Status + ":" + msg.RoomName
	}))
	ready.Done()

	f.send(wire.Reply{Status: wire.StatusNotification, RoomName: "a"})
	f.send(wire.Reply{Status: wire.StatusInvite, RoomName: "b", Inviter: "alice"})
	f.send(wire.Reply{Status: wire.StatusGameStart, RoomName: "c"})

	var order []string
	for i := 0; i < 3; i++ {
		select {
		case s := <-got:
			order = append(order, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d pushes arrived", i)
		}
	}
	assert.Equal(t, []string{"notification:a", "invite:b", "game_start:c"}, order)

	var responded bool
	for _, req := range f.received() {
		if req.Action == wire.ActionRespondToInvite {
			responded = true
			require.NotNil(t, req.Response)
			assert.True(t, *req.Response)
		}
	}
	assert.True(t, responded)
}

func TestUploadGame_SplitsByRunes(t *testing.T) {
	c, f := newFakeLobby(t, echoSuccess)

	require.NoError(t, c.UploadGame(context.Background(), "ttt", "tic tac toe", "abcdéf", 2))

	reqs := f.received()
	require.Len(t, reqs, 3)
	assert.Equal(t, wire.ActionUploadGame, reqs[0].Action)
	assert.Equal(t, 3, reqs[0].TotalChunks)
	assert.Equal(t, "tic tac toe", reqs[0].Description)

	var parts []string
	for i, req := range reqs {
		assert.Equal(t, "ttt", req.GameName)
		assert.Equal(t, i, req.ChunkIndex)
		if i > 0 {
			assert.Equal(t, wire.ActionUploadGameChunk, req.Action)
		}
		parts = append(parts, req.GameContent)
	}
	assert.Equal(t, []string{"ab", "cd", "éf"}, parts)
}

func TestUploadGame_StopsOnError(t *testing.T) {
	c, f := newFakeLobby(t, func(f *fakeLobby, req wire.Request) {
		if req.ChunkIndex == 1 {
			f.reply(req, wire.Reply{Status: wire.StatusError, Message: "chunk out of order"})
			return
		}
		echoSuccess(f, req)
	})

	err := c.UploadGame(context.Background(), "g", "", "aaaa", 1)
	var remote *RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Len(t, f.received(), 2)
}

func TestSplitRunes(t *testing.T) {
	chunks, err := splitRunes("", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, chunks)

	chunks, err = splitRunes("abcde", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcde"}, chunks)

	_, err = splitRunes("abc", 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestTypedHelpersDecodeReplies(t *testing.T) {
	c, _ := newFakeLobby(t, func(f *fakeLobby, req wire.Request) {
		switch req.Action {
		case wire.ActionLogin:
			f.reply(req, wire.Reply{Status: wire.StatusSuccess, Username: req.Username, Token: "tok",
				Players: map[string]string{"bob": "idle"}})
		case wire.ActionListRooms:
			f.reply(req, wire.Reply{Status: wire.StatusSuccess,
				Rooms: map[string]wire.RoomInfo{"r1": {Type: "public", Creator: "bob", Status: "waiting"}}})
		case wire.ActionGetGameServer:
			f.reply(req, wire.Reply{Status: wire.StatusSuccess,
				ServerInfo: &wire.ServerInfo{IP: "10.0.0.1", Port: 4000, GameType: "rps"}})
		case wire.ActionListGames:
			f.reply(req, wire.Reply{Status: wire.StatusSuccess,
				Games: []wire.GameInfo{{Name: "ttt", Publisher: "bob"}}})
		case wire.ActionDownloadGame:
			f.reply(req, wire.Reply{Status: wire.StatusSuccess, GameContent: wire.String("abcdef")})
		default:
			echoSuccess(f, req)
		}
	})
	ctx := context.Background()

	login, err := c.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, LoginResult{Username: "alice", Token: "tok", Players: map[string]string{"bob": "idle"}}, login)

	rooms, err := c.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", rooms["r1"].Creator)

	info, err := c.GetGameServer(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, wire.ServerInfo{IP: "10.0.0.1", Port: 4000, GameType: "rps"}, info)

	games, err := c.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)

	content, err := c.DownloadGame(ctx, "ttt")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", content)

	for _, call := range []func() error{
		func() error { return c.Register(ctx, "alice", "pw") },
		func() error { return c.Logout(ctx, "alice") },
		func() error { return c.CreateRoom(ctx, "r", "public") },
		func() error { return c.JoinRoom(ctx, "r") },
		func() error { return c.InvitePlayer(ctx, "r", "bob") },
		func() error { return c.SetGameServer(ctx, "r", "", 4000, "rps") },
		func() error { return c.CloseRoom(ctx, "r") },
	} {
		assert.NoError(t, call())
	}
}
