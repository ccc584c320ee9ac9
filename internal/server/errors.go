package server

import (
	"errors"

	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/lobby"
	"playmatch/lobby/internal/presence"
	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
)

// clientErrors are reported to the caller as they are. Anything else is
// logged and answered with a generic message.
var clientErrors = []error{
	presence.ErrAlreadyExists,
	presence.ErrNoSuchUser,
	presence.ErrWrongSecret,
	presence.ErrInvalidCredentials,
	presence.ErrAlreadyOnline,

	lobby.ErrNotLoggedIn,
	lobby.ErrNotIdle,
	lobby.ErrInvalidRoom,
	lobby.ErrRoomExists,
	lobby.ErrRoomNotFound,
	lobby.ErrRoomNotWaiting,
	lobby.ErrRoomNotPlaying,
	lobby.ErrNotPublic,
	lobby.ErrNotPrivate,
	lobby.ErrNotMember,
	lobby.ErrNotCreator,
	lobby.ErrInviteeNotIdle,
	lobby.ErrSelfInvite,
	lobby.ErrAlreadyInvited,
	lobby.ErrNotInvited,
	lobby.ErrInvalidGameServer,
	lobby.ErrGameServerSet,
	lobby.ErrGameServerNotFound,

	artifact.ErrInvalidName,
	artifact.ErrInvalidChunk,
	artifact.ErrChunkTooLarge,
	artifact.ErrNameTaken,
	artifact.ErrUploadInProgress,
	artifact.ErrNoUpload,
	artifact.ErrOutOfOrderChunk,
	artifact.ErrNotFound,
	artifact.ErrArtifactTooLarge,

	ErrSessionActive,
	ErrOtherUser,
	ErrMissingResponse,
	ErrFirstChunk,
}

func errorReply(message string) wire.Reply {
	return wire.Reply{Status: wire.StatusError, Message: message}
}

func (s *Server) handleError(c *conn, req wire.Request, err error) wire.Reply {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			c.log.WithFields(logrus.Fields{"action": req.Action}).WithError(err).Debug("Request rejected")
			return errorReply(err.Error())
		}
	}
	c.log.WithFields(logrus.Fields{"action": req.Action}).WithError(err).Error("Request failed")
	return errorReply("internal error")
}
