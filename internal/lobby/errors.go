package lobby

import "errors"

var (
	ErrNotLoggedIn        = errors.New("user must be logged in")
	ErrNotIdle            = errors.New("user is not idle")
	ErrInvalidRoom        = errors.New("room name and a room type of public or private are required")
	ErrRoomExists         = errors.New("room name already in use")
	ErrRoomNotFound       = errors.New("room does not exist")
	ErrRoomNotWaiting     = errors.New("room is already in game")
	ErrRoomNotPlaying     = errors.New("room is not playing")
	ErrNotPublic          = errors.New("room is not public")
	ErrNotPrivate         = errors.New("room is not private")
	ErrNotMember          = errors.New("user is not a member of the room")
	ErrNotCreator         = errors.New("only the room creator can do that")
	ErrInviteeNotIdle     = errors.New("invited player is not idle")
	ErrSelfInvite         = errors.New("cannot invite yourself")
	ErrAlreadyInvited     = errors.New("player already has a pending invite to this room")
	ErrNotInvited         = errors.New("no pending invite for this room")
	ErrInvalidGameServer  = errors.New("game server needs a port between 1 and 65535 and a game type")
	ErrGameServerSet      = errors.New("game server already set for this room")
	ErrGameServerNotFound = errors.New("game server does not exist")
)
