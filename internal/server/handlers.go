package server

import (
	"context"
	"errors"
	"fmt"

	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/lobby"
	"playmatch/lobby/internal/wire"
	"playmatch/lobby/pkg/jwt"
)

var (
	ErrSessionActive   = errors.New("already logged in on this connection")
	ErrOtherUser       = errors.New("can only log out the user of this connection")
	ErrMissingResponse = errors.New("response must be true or false")
	ErrFirstChunk      = errors.New("upload_game carries chunk 0, later chunks use upload_game_chunk")
)

type handlerFunc func(ctx context.Context, c *conn, req wire.Request) (wire.Reply, error)

type route struct {
	fn handlerFunc
	// public routes do not need a logged-in user
	public bool
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		wire.ActionRegister:        {fn: s.register, public: true},
		wire.ActionLogin:           {fn: s.login, public: true},
		wire.ActionLogout:          {fn: s.logout},
		wire.ActionCreateRoom:      {fn: s.createRoom},
		wire.ActionJoinRoom:        {fn: s.joinRoom},
		wire.ActionListRooms:       {fn: s.listRooms},
		wire.ActionInvitePlayer:    {fn: s.invitePlayer},
		wire.ActionRespondToInvite: {fn: s.respondToInvite},
		wire.ActionSetGameServer:   {fn: s.setGameServer},
		wire.ActionGetGameServer:   {fn: s.getGameServer},
		wire.ActionCloseRoom:       {fn: s.closeRoom},
		wire.ActionUploadGame:      {fn: s.uploadGame},
		wire.ActionUploadGameChunk: {fn: s.uploadGameChunk},
		wire.ActionListGames:       {fn: s.listGames},
		wire.ActionDownloadGame:    {fn: s.downloadGame},
	}
}

func success(format string, args ...any) wire.Reply {
	return wire.Reply{Status: wire.StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

func (s *Server) register(ctx context.Context, _ *conn, req wire.Request) (wire.Reply, error) {
	if err := s.presence.Register(ctx, req.Username, req.Password); err != nil {
		return wire.Reply{}, err
	}
	return success("user %s registered", req.Username), nil
}

func (s *Server) login(ctx context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if c.username != "" {
		return wire.Reply{}, ErrSessionActive
	}

	snapshot, err := s.presence.Login(ctx, req.Username, req.Password, c.peer)
	if err != nil {
		return wire.Reply{}, err
	}
	c.username = req.Username
	c.log = c.log.WithField("username", req.Username)
	c.log.Info("User logged in")

	token, err := jwt.GenerateToken(s.opts.JWTSecret, req.Username, s.opts.TokenTTL)
	if err != nil {
		// the lobby session itself is fine without a token
		c.log.WithError(err).Error("Failed to issue token")
	}

	players := make(map[string]string, len(snapshot))
	for name, status := range snapshot {
		players[name] = string(status)
	}

	reply := success("welcome %s", req.Username)
	reply.Username = req.Username
	reply.Token = token
	reply.Players = players
	return reply, nil
}

func (s *Server) logout(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if req.Username != "" && req.Username != c.username {
		return wire.Reply{}, ErrOtherUser
	}
	username := c.username
	s.endSession(c)
	return success("user %s logged out", username), nil
}

func (s *Server) createRoom(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if err := s.lobby.CreateRoom(c.username, req.RoomName, lobby.Kind(req.RoomType)); err != nil {
		return wire.Reply{}, err
	}
	return success("%s room %s created", req.RoomType, req.RoomName), nil
}

func (s *Server) joinRoom(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if err := s.lobby.JoinRoom(req.RoomName, c.username); err != nil {
		return wire.Reply{}, err
	}
	return success("joined room %s", req.RoomName), nil
}

func (s *Server) listRooms(context.Context, *conn, wire.Request) (wire.Reply, error) {
	rooms := s.lobby.PublicRooms()
	out := make(map[string]wire.RoomInfo, len(rooms))
	for name, room := range rooms {
		out[name] = wire.RoomInfo{
			Type:    string(room.Kind),
			Creator: room.Creator,
			Status:  string(room.Status),
		}
	}
	return wire.Reply{Status: wire.StatusSuccess, Rooms: out}, nil
}

func (s *Server) invitePlayer(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if err := s.lobby.InvitePlayer(req.RoomName, c.username, req.InvitedPlayer); err != nil {
		return wire.Reply{}, err
	}
	return success("invited %s to room %s", req.InvitedPlayer, req.RoomName), nil
}

func (s *Server) respondToInvite(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if req.Response == nil {
		return wire.Reply{}, ErrMissingResponse
	}
	if err := s.lobby.RespondToInvite(req.RoomName, c.username, *req.Response); err != nil {
		return wire.Reply{}, err
	}
	if *req.Response {
		return success("joined room %s", req.RoomName), nil
	}
	return success("declined invite to room %s", req.RoomName), nil
}

func (s *Server) setGameServer(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	ip := req.IP
	if ip == "" {
		ip = c.peer.RemoteIP()
	}
	gs := lobby.GameServer{Address: ip, Port: req.Port, GameType: req.GameType}
	if err := s.lobby.SetGameServer(req.RoomName, c.username, gs); err != nil {
		return wire.Reply{}, err
	}
	return success("game server for room %s set to %s:%d", req.RoomName, ip, req.Port), nil
}

func (s *Server) getGameServer(_ context.Context, _ *conn, req wire.Request) (wire.Reply, error) {
	gs, err := s.lobby.GetGameServer(req.RoomName)
	if err != nil {
		return wire.Reply{}, err
	}
	return wire.Reply{
		Status:     wire.StatusSuccess,
		ServerInfo: &wire.ServerInfo{IP: gs.Address, Port: gs.Port, GameType: gs.GameType},
	}, nil
}

func (s *Server) closeRoom(_ context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if err := s.lobby.CloseRoom(req.RoomName, c.username); err != nil {
		return wire.Reply{}, err
	}
	return success("room %s closed", req.RoomName), nil
}

func (s *Server) uploadGame(ctx context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if req.ChunkIndex != 0 {
		return wire.Reply{}, ErrFirstChunk
	}
	return s.putChunk(ctx, c, req)
}

func (s *Server) uploadGameChunk(ctx context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	if req.ChunkIndex == 0 {
		return wire.Reply{}, ErrFirstChunk
	}
	return s.putChunk(ctx, c, req)
}

func (s *Server) putChunk(ctx context.Context, c *conn, req wire.Request) (wire.Reply, error) {
	done, err := s.artifacts.PutChunk(ctx, c.username, artifact.Chunk{
		Name:        req.GameName,
		Index:       req.ChunkIndex,
		Total:       req.TotalChunks,
		Content:     req.GameContent,
		Description: req.Description,
	})
	if err != nil {
		return wire.Reply{}, err
	}
	if done {
		return success("game %s uploaded", req.GameName), nil
	}
	return success("chunk %d of %s received", req.ChunkIndex, req.GameName), nil
}

func (s *Server) listGames(context.Context, *conn, wire.Request) (wire.Reply, error) {
	games := s.artifacts.List()
	out := make([]wire.GameInfo, 0, len(games))
	for _, g := range games {
		out = append(out, wire.GameInfo{Name: g.Name, Publisher: g.Publisher, Description: g.Description})
	}
	return wire.Reply{Status: wire.StatusSuccess, Games: out}, nil
}

func (s *Server) downloadGame(_ context.Context, _ *conn, req wire.Request) (wire.Reply, error) {
	content, err := s.artifacts.Download(req.GameName)
	if err != nil {
		return wire.Reply{}, err
	}
	return wire.Reply{Status: wire.StatusSuccess, GameContent: wire.String(content)}, nil
}
