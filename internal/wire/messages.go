package wire

import "github.com/goccy/go-json"

// Actions carried in Request.Action.
const (
	ActionRegister        = "register"
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionCreateRoom      = "create_room"
	ActionJoinRoom        = "join_room"
	ActionListRooms       = "list_rooms"
	ActionInvitePlayer    = "invite_player"
	ActionRespondToInvite = "respond_to_invite"
	ActionSetGameServer   = "set_game_server"
	ActionGetGameServer   = "get_game_server"
	ActionCloseRoom       = "close_room"
	ActionUploadGame      = "upload_game"
	ActionUploadGameChunk = "upload_game_chunk"
	ActionListGames       = "list_games"
	ActionDownloadGame    = "download_game"
)

// Reply statuses. The first two answer a request, the rest are pushes.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusInvite         = "invite"
	StatusInviteAccepted = "invite_accepted"
	StatusInviteRejected = "invite_rejected"
	StatusGameStart      = "game_start"
	StatusNotification   = "notification"
)

// Request is sent by a client. Only the fields relevant to Action are set.
type Request struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	RoomType      string `json:"room_type,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	InvitedPlayer string `json:"invited_player,omitempty"`
	Response      *bool  `json:"response,omitempty"`

	IP       string `json:"ip,omitempty"`
	Port     int    `json:"port,omitempty"`
	GameType string `json:"game_type,omitempty"`

	GameName    string `json:"game_name,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
	GameContent string `json:"game_content,omitempty"`
	Description string `json:"description,omitempty"`
}

// Reply is sent by the lobby, either echoing a RequestID or as a push.
type Reply struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`

	Username string            `json:"username,omitempty"`
	Token    string            `json:"token,omitempty"`
	Players  map[string]string `json:"players,omitempty"`

	Rooms      map[string]RoomInfo `json:"rooms,omitempty"`
	ServerInfo *ServerInfo         `json:"server_info,omitempty"`

	Games []GameInfo `json:"games,omitempty"`
	// GameContent is set on download_game replies, also for an empty game.
	GameContent *string `json:"game_content,omitempty"`

	// push fields
	RoomName string `json:"room_name,omitempty"`
	Inviter  string `json:"inviter,omitempty"`
	Player   string `json:"player,omitempty"`
	IP       string `json:"ip,omitempty"`
	Port     int    `json:"port,omitempty"`
	GameType string `json:"game_type,omitempty"`
}

// replyJSON is the encoded form of Reply. Collections are pointers so that
// only a nil collection is left out.
type replyJSON struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`

	Username string             `json:"username,omitempty"`
	Token    string             `json:"token,omitempty"`
	Players  *map[string]string `json:"players,omitempty"`

	Rooms      *map[string]RoomInfo `json:"rooms,omitempty"`
	ServerInfo *ServerInfo          `json:"server_info,omitempty"`

	Games       *[]GameInfo `json:"games,omitempty"`
	GameContent *string     `json:"game_content,omitempty"`

	RoomName string `json:"room_name,omitempty"`
	Inviter  string `json:"inviter,omitempty"`
	Player   string `json:"player,omitempty"`
	IP       string `json:"ip,omitempty"`
	Port     int    `json:"port,omitempty"`
	GameType string `json:"game_type,omitempty"`
}

// MarshalJSON keeps players, rooms and games in the reply that owns them
// even when they are empty. A nil collection is omitted.
func (r Reply) MarshalJSON() ([]byte, error) {
	out := replyJSON{
		Status:      r.Status,
		RequestID:   r.RequestID,
		Message:     r.Message,
		Username:    r.Username,
		Token:       r.Token,
		ServerInfo:  r.ServerInfo,
		GameContent: r.GameContent,
		RoomName:    r.RoomName,
		Inviter:     r.Inviter,
		Player:      r.Player,
		IP:          r.IP,
		Port:        r.Port,
		GameType:    r.GameType,
	}
	if r.Players != nil {
		out.Players = &r.Players
	}
	if r.Rooms != nil {
		out.Rooms = &r.Rooms
	}
	if r.Games != nil {
		out.Games = &r.Games
	}
	return json.Marshal(out)
}

// IsPush reports whether r was not sent in answer to a request.
func (r Reply) IsPush() bool {
	return r.RequestID == ""
}

type RoomInfo struct {
	Type    string `json:"type"`
	Creator string `json:"creator"`
	Status  string `json:"status"`
}

type ServerInfo struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	GameType string `json:"game_type"`
}

type GameInfo struct {
	Name        string `json:"name"`
	Publisher   string `json:"publisher"`
	Description string `json:"description"`
}

// Bool returns a pointer to v, for Request.Response.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v, for Reply.GameContent.
func String(v string) *string {
	return &v
}
