package client

import (
	"context"
	"errors"

	"playmatch/lobby/internal/wire"
)

var ErrInvalidChunkSize = errors.New("client: chunk size must be positive")

type LoginResult struct {
	Username string
	Token    string
	// Players maps every other online user to their status.
	Players map[string]string
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionRegister, Username: username, Password: password})
	return err
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionLogin, Username: username, Password: password})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Username: reply.Username, Token: reply.Token, Players: reply.Players}, nil
}

func (c *Client) Logout(ctx context.Context, username string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionLogout, Username: username})
	return err
}

// CreateRoom opens a room of kind "public" or "private".
func (c *Client) CreateRoom(ctx context.Context, name, kind string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionCreateRoom, RoomName: name, RoomType: kind})
	return err
}

func (c *Client) JoinRoom(ctx context.Context, name string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionJoinRoom, RoomName: name})
	return err
}

// ListRooms returns the public rooms.
func (c *Client) ListRooms(ctx context.Context) (map[string]wire.RoomInfo, error) {
	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionListRooms})
	if err != nil {
		return nil, err
	}
	return reply.Rooms, nil
}

func (c *Client) InvitePlayer(ctx context.Context, room, player string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionInvitePlayer, RoomName: room, InvitedPlayer: player})
	return err
}

func (c *Client) RespondToInvite(ctx context.Context, room string, accept bool) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionRespondToInvite, RoomName: room, Response: wire.Bool(accept)})
	return err
}

// SetGameServer announces where the caller hosts the game. An empty ip lets
// the lobby use the address it sees the caller connect from.
func (c *Client) SetGameServer(ctx context.Context, room, ip string, port int, gameType string) error {
	_, err := c.Call(ctx, wire.Request{
		Action:   wire.ActionSetGameServer,
		RoomName: room,
		IP:       ip,
		Port:     port,
		GameType: gameType,
	})
	return err
}

func (c *Client) GetGameServer(ctx context.Context, room string) (wire.ServerInfo, error) {
	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionGetGameServer, RoomName: room})
	if err != nil {
		return wire.ServerInfo{}, err
	}
	if reply.ServerInfo == nil {
		return wire.ServerInfo{}, &RemoteError{Action: wire.ActionGetGameServer, Message: "reply carried no server_info"}
	}
	return *reply.ServerInfo, nil
}

func (c *Client) CloseRoom(ctx context.Context, room string) error {
	_, err := c.Call(ctx, wire.Request{Action: wire.ActionCloseRoom, RoomName: room})
	return err
}

// UploadGame publishes content as name, split into chunks of at most
// chunkSize runes.
func (c *Client) UploadGame(ctx context.Context, name, description, content string, chunkSize int) error {
	chunks, err := splitRunes(content, chunkSize)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		req := wire.Request{
			Action:      wire.ActionUploadGameChunk,
			GameName:    name,
			ChunkIndex:  i,
			GameContent: chunk,
		}
		if i == 0 {
			req.Action = wire.ActionUploadGame
			req.TotalChunks = len(chunks)
			req.Description = description
		}
		if _, err := c.Call(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ListGames(ctx context.Context) ([]wire.GameInfo, error) {
	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionListGames})
	if err != nil {
		return nil, err
	}
	return reply.Games, nil
}

func (c *Client) DownloadGame(ctx context.Context, name string) (string, error) {
	reply, err := c.Call(ctx, wire.Request{Action: wire.ActionDownloadGame, GameName: name})
	if err != nil {
		return "", err
	}
	if reply.GameContent == nil {
		return "", &RemoteError{Action: wire.ActionDownloadGame, Message: "reply carried no game_content"}
	}
	return *reply.GameContent, nil
}

// splitRunes cuts s into pieces of at most size runes. Empty input is a
// single empty chunk.
func splitRunes(s string, size int) ([]string, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}, nil
	}

	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
