// Package session bootstraps the direct game connection between two players
// once the lobby has matched them. The room creator listens and announces its
// address through the lobby; the other member dials it. Game traffic never
// goes through the lobby.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
)

// Game plays one match over conn. host is true on the side that listened.
type Game interface {
	Play(ctx context.Context, conn net.Conn, host bool) error
}

// GameFunc adapts a function to Game.
type GameFunc func(ctx context.Context, conn net.Conn, host bool) error

func (f GameFunc) Play(ctx context.Context, conn net.Conn, host bool) error {
	return f(ctx, conn, host)
}

// Announcer registers a game server with the lobby; *client.Client is one.
type Announcer interface {
	SetGameServer(ctx context.Context, room, ip string, port int, gameType string) error
}

// Endpoint is a bound game listener.
type Endpoint struct {
	Listener  net.Listener
	Port      int
	Requested int
	// FellBack is set when the requested port was taken and the OS picked one.
	FellBack bool
}

func (e *Endpoint) Close() error {
	return e.Listener.Close()
}

// Listen binds host:preferredPort, or an OS-assigned port if that fails.
// A preferredPort of zero always asks the OS.
func Listen(host string, preferredPort int) (*Endpoint, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(preferredPort)))
	fellBack := false
	if err != nil && preferredPort != 0 {
		logrus.WithFields(logrus.Fields{"port": preferredPort}).WithError(err).
			Warn("Preferred game port unavailable, using an OS-assigned port")
		ln, err = net.Listen("tcp", net.JoinHostPort(host, "0"))
		fellBack = true
	}
	if err != nil {
		return nil, fmt.Errorf("listen for game: %w", err)
	}

	return &Endpoint{
		Listener:  ln,
		Port:      ln.Addr().(*net.TCPAddr).Port,
		Requested: preferredPort,
		FellBack:  fellBack,
	}, nil
}

// Host binds a game listener and announces it for room. An empty
// advertiseIP lets the lobby use the address it sees the caller on. The
// listener is closed if the announcement fails.
func Host(ctx context.Context, a Announcer, room, gameType, advertiseIP, host string, preferredPort int) (*Endpoint, error) {
	ep, err := Listen(host, preferredPort)
	if err != nil {
		return nil, err
	}
	if err := a.SetGameServer(ctx, room, advertiseIP, ep.Port, gameType); err != nil {
		ep.Close()
		return nil, fmt.Errorf("announce game server: %w", err)
	}
	logrus.WithFields(logrus.Fields{"room": room, "port": ep.Port, "game": gameType}).Info("Hosting game")
	return ep, nil
}

// Dial connects to the game server described by a game_start push or a
// get_game_server reply.
func Dial(ctx context.Context, info wire.ServerInfo) (net.Conn, error) {
	var d net.Dialer
	addr := net.JoinHostPort(info.IP, strconv.Itoa(info.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial game server %s: %w", addr, err)
	}
	return conn, nil
}

// Run accepts a single opponent on ep and plays game with it. The listener is
// closed when Run returns.
func Run(ctx context.Context, ep *Endpoint, game Game) error {
	defer ep.Close()

	stop := context.AfterFunc(ctx, func() { ep.Close() })
	defer stop()

	conn, err := ep.Listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accept opponent: %w", err)
	}
	// one opponent per session
	ep.Close()
	defer conn.Close()

	return play(ctx, conn, game, true)
}

// Join dials the host and plays game with it.
func Join(ctx context.Context, info wire.ServerInfo, game Game) error {
	conn, err := Dial(ctx, info)
	if err != nil {
		return err
	}
	defer conn.Close()
	return play(ctx, conn, game, false)
}

func play(ctx context.Context, conn net.Conn, game Game, host bool) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := game.Play(ctx, conn, host)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}
