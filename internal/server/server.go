// Package server is the lobby's TCP front end. Each connection gets one
// goroutine that reads requests in order, dispatches them by action and
// queues the reply on the connection's hub peer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/hub"
	"playmatch/lobby/internal/lobby"
	"playmatch/lobby/internal/presence"
	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
)

type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
}

type Server struct {
	hub       *hub.Hub
	presence  *presence.Store
	lobby     *lobby.Lobby
	artifacts *artifact.Store
	opts      Options
	handlers  map[string]route
	log       *logrus.Entry

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// conn is the per-connection state. Only the connection's own goroutine
// touches it.
type conn struct {
	peer     *hub.Peer
	username string
	log      *logrus.Entry
}

func New(h *hub.Hub, p *presence.Store, l *lobby.Lobby, a *artifact.Store, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	s := &Server{
		hub:       h,
		presence:  p,
		lobby:     l,
		artifacts: a,
		opts:      opts,
		log:       logrus.WithField("component", "server"),
	}
	s.handlers = s.routes()
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every
// connection and waits for their cleanup to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.hub.CloseAll()
	})
	defer stop()

	s.log.WithField("addr", ln.Addr().String()).Info("Lobby listening")

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				s.log.Info("Lobby stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			ln.Close()
			s.hub.CloseAll()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, nc)
		}()
	}
}

// Addr is the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	peer := s.hub.Register(nc)
	c := &conn{
		peer: peer,
		log:  s.log.WithFields(logrus.Fields{"peer": peer.ID.String(), "remote": nc.RemoteAddr().String()}),
	}
	c.log.Debug("Client connected")

	defer func() {
		s.endSession(c)
		s.hub.Unregister(peer)
		c.log.Debug("Client disconnected")
	}()

	for req, err := range wire.Receive[wire.Request](nc) {
		if err != nil {
			var ferr *wire.FramingError
			if errors.As(err, &ferr) {
				c.log.WithError(err).Warn("Skipping undecodable frame")
				continue
			}
			select {
			case <-peer.Done():
			default:
				c.log.WithError(err).Info("Connection read failed")
			}
			return
		}

		reply := s.dispatch(ctx, c, req)
		reply.RequestID = req.RequestID
		if err := s.send(c, req, reply); err != nil {
			return
		}
	}
}

// send queues reply on the peer. A reply that cannot be encoded is answered
// with an error reply instead; only a gone peer is reported back.
func (s *Server) send(c *conn, req wire.Request, reply wire.Reply) error {
	err := c.peer.Send(reply)
	if err == nil || errors.Is(err, hub.ErrPeerGone) {
		return err
	}

	c.log.WithFields(logrus.Fields{"action": req.Action}).WithError(err).Error("Failed to encode reply")
	fallback := errorReply("internal error")
	if errors.Is(err, wire.ErrFrameTooLarge) {
		fallback = errorReply("reply exceeds the maximum frame size")
	}
	fallback.RequestID = req.RequestID
	return c.peer.Send(fallback)
}

func (s *Server) dispatch(ctx context.Context, c *conn, req wire.Request) wire.Reply {
	r, ok := s.handlers[req.Action]
	if !ok {
		return errorReply(fmt.Sprintf("unknown action: %q", req.Action))
	}
	if !r.public && c.username == "" {
		return s.handleError(c, req, lobby.ErrNotLoggedIn)
	}

	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	reply, err := r.fn(ctx, c, req)
	if err != nil {
		return s.handleError(c, req, err)
	}
	if reply.Status == "" {
		reply.Status = wire.StatusSuccess
	}
	return reply
}

// endSession releases everything the connection's user holds. Presence goes
// first so nobody can invite the user while the lobby cleans up.
func (s *Server) endSession(c *conn) {
	if c.username == "" {
		return
	}
	username := c.username
	c.username = ""

	if n := s.artifacts.AbortPublisher(username); n > 0 {
		c.log.WithFields(logrus.Fields{"username": username, "uploads": n}).Info("Discarded unfinished uploads")
	}
	s.presence.Logout(username, c.peer)
	s.lobby.Leave(username)
	c.log.WithField("username", username).Info("User logged out")
}
