// Command lobbyctl talks to a running lobby from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"playmatch/lobby/internal/client"
	"playmatch/lobby/internal/session"
	"playmatch/lobby/internal/wire"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const usage = `usage: lobbyctl [flags] <command> [args]

commands:
  register                 create the account given by --user and --password
  players                  log in and list the other online players
  rooms                    list public rooms
  games                    list published games
  upload <name> <file>     publish a game file
  download <name> [file]   fetch a game (stdout when file is omitted)
  host <room>              open a room, wait for an opponent and relay stdin
                           (--private needs --invite with the players to ask)
  join <room>              join a public room and relay stdin once it starts
  accept [room]            wait for an invite, accept it and relay stdin once it starts
  decline [room]           wait for an invite and decline it

flags:
`

type options struct {
	addr        string
	user        string
	password    string
	timeout     time.Duration
	chunkSize   int
	description string
	private     bool
	invite      []string
	port        int
	gameType    string
	advertise   string
	verbose     bool
}

func main() {
	opts := options{}
	fs := flag.NewFlagSet("lobbyctl", flag.ContinueOnError)
	fs.StringVarP(&opts.addr, "addr", "a", envOr("LOBBY_ADDR", "127.0.0.1:12222"), "lobby address")
	fs.StringVarP(&opts.user, "user", "u", os.Getenv("LOBBY_USER"), "username")
	fs.StringVarP(&opts.password, "password", "p", os.Getenv("LOBBY_PASSWORD"), "password")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.IntVar(&opts.chunkSize, "chunk-size", 16*1024, "upload chunk size in characters")
	fs.StringVarP(&opts.description, "description", "d", "", "game description for upload")
	fs.BoolVar(&opts.private, "private", false, "host a private room")
	fs.StringSliceVar(&opts.invite, "invite", nil, "players to invite to a private room")
	fs.IntVar(&opts.port, "port", 0, "preferred game port for host (0 lets the OS pick)")
	fs.StringVar(&opts.gameType, "game", "chat", "game type announced by host")
	fs.StringVar(&opts.advertise, "advertise", "", "address announced by host (empty uses the one the lobby sees)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, fs.Arg(0), fs.Args()[1:]); err != nil {
		logrus.WithError(err).Error("lobbyctl failed")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, opts options, command string, args []string) error {
	pushes := make(chan wire.Reply, 16)
	c, err := client.Dial(ctx, opts.addr,
		client.WithTimeout(opts.timeout),
		client.WithPushHandler(func(msg wire.Reply) {
			select {
			case pushes <- msg:
			default:
				logrus.WithField("status", msg.Status).Debug("Dropping push")
			}
		}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	switch command {
	case "register":
		if err := c.Register(ctx, opts.user, opts.password); err != nil {
			return err
		}
		fmt.Printf("registered %s\n", opts.user)
		return nil
	case "players":
		res, err := c.Login(ctx, opts.user, opts.password)
		if err != nil {
			return err
		}
		printPlayers(res.Players)
		return nil
	case "rooms":
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		rooms, err := c.ListRooms(ctx)
		if err != nil {
			return err
		}
		printRooms(rooms)
		return nil
	case "games":
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		games, err := c.ListGames(ctx)
		if err != nil {
			return err
		}
		printGames(games)
		return nil
	case "upload":
		if len(args) != 2 {
			return errors.New("upload needs <name> <file>")
		}
		content, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		if err := c.UploadGame(ctx, args[0], opts.description, string(content), opts.chunkSize); err != nil {
			return err
		}
		fmt.Printf("published %s\n", args[0])
		return nil
	case "download":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("download needs <name> [file]")
		}
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		content, err := c.DownloadGame(ctx, args[0])
		if err != nil {
			return err
		}
		if len(args) == 2 {
			return os.WriteFile(args[1], []byte(content), 0o644)
		}
		_, err = io.WriteString(os.Stdout, content)
		return err
	case "host":
		if len(args) != 1 {
			return errors.New("host needs <room>")
		}
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		return host(ctx, c, opts, args[0], pushes)
	case "join":
		if len(args) != 1 {
			return errors.New("join needs <room>")
		}
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		return join(ctx, c, args[0], pushes)
	case "accept", "decline":
		if len(args) > 1 {
			return fmt.Errorf("%s takes at most one <room>", command)
		}
		room := ""
		if len(args) == 1 {
			room = args[0]
		}
		if err := login(ctx, c, opts); err != nil {
			return err
		}
		return answerInvite(ctx, c, room, command == "accept", pushes)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, c *client.Client, opts options) error {
	_, err := c.Login(ctx, opts.user, opts.password)
	return err
}

// roomKind picks the room type for host. Nobody can join a private room
// unless invited, so one needs at least one invitee.
func roomKind(opts options) (string, error) {
	switch {
	case opts.private && len(opts.invite) == 0:
		return "", errors.New("a private room needs --invite")
	case !opts.private && len(opts.invite) > 0:
		return "", errors.New("--invite needs --private")
	case opts.private:
		return "private", nil
	default:
		return "public", nil
	}
}

// host opens the room, waits until someone joins, then announces a game
// listener and relays stdin with the opponent.
func host(ctx context.Context, c *client.Client, opts options, room string, pushes <-chan wire.Reply) error {
	kind, err := roomKind(opts)
	if err != nil {
		return err
	}
	if err := c.CreateRoom(ctx, room, kind); err != nil {
		return err
	}
	defer c.CloseRoom(context.Background(), room)

	for _, player := range opts.invite {
		if err := c.InvitePlayer(ctx, room, player); err != nil {
			return fmt.Errorf("invite %s: %w", player, err)
		}
	}
	logrus.WithField("room", room).Info("Room open, waiting for an opponent")

	declined := 0
	for {
		msg, err := nextPush(ctx, c, pushes)
		if err != nil {
			return err
		}
		switch msg.Status {
		case wire.StatusInviteRejected:
			logrus.WithField("player", msg.Player).Info("Invite declined")
			declined++
			if declined == len(opts.invite) {
				return errors.New("every invite was declined")
			}
		case wire.StatusInviteAccepted:
			logrus.WithField("player", msg.Player).Info("Opponent joined")
			ep, err := session.Host(ctx, c, room, opts.gameType, opts.advertise, "", opts.port)
			if err != nil {
				return err
			}
			return session.Run(ctx, ep, session.GameFunc(relay))
		case wire.StatusNotification:
			logrus.Info(msg.Message)
		}
	}
}

// join enters a public room and waits for the game.
func join(ctx context.Context, c *client.Client, room string, pushes <-chan wire.Reply) error {
	if err := c.JoinRoom(ctx, room); err != nil {
		return err
	}
	logrus.WithField("room", room).Info("Joined, waiting for the host")
	return awaitGame(ctx, c, pushes)
}

// answerInvite waits for an invite to room, or to any room when room is
// empty, and answers it. An accepted invite goes on to the game.
func answerInvite(ctx context.Context, c *client.Client, room string, accept bool, pushes <-chan wire.Reply) error {
	logrus.Info("Waiting for an invite")
	for {
		msg, err := nextPush(ctx, c, pushes)
		if err != nil {
			return err
		}
		if msg.Status != wire.StatusInvite || (room != "" && msg.RoomName != room) {
			continue
		}
		logrus.WithFields(logrus.Fields{"room": msg.RoomName, "inviter": msg.Inviter}).Info("Invited")
		if err := c.RespondToInvite(ctx, msg.RoomName, accept); err != nil {
			return err
		}
		if !accept {
			return nil
		}
		return awaitGame(ctx, c, pushes)
	}
}

// awaitGame waits for the host to announce the game and plays it.
func awaitGame(ctx context.Context, c *client.Client, pushes <-chan wire.Reply) error {
	for {
		msg, err := nextPush(ctx, c, pushes)
		if err != nil {
			return err
		}
		switch msg.Status {
		case wire.StatusGameStart:
			info := wire.ServerInfo{IP: msg.IP, Port: msg.Port, GameType: msg.GameType}
			logrus.WithFields(logrus.Fields{"ip": info.IP, "port": info.Port}).Info("Game starting")
			return session.Join(ctx, info, session.GameFunc(relay))
		case wire.StatusNotification:
			logrus.Info(msg.Message)
		}
	}
}

func nextPush(ctx context.Context, c *client.Client, pushes <-chan wire.Reply) (wire.Reply, error) {
	select {
	case <-ctx.Done():
		return wire.Reply{}, ctx.Err()
	case <-c.Done():
		return wire.Reply{}, client.ErrClosed
	case msg := <-pushes:
		return msg, nil
	}
}

// relay copies stdin to the opponent and the opponent to stdout. It returns
// once the opponent stops sending; a pending stdin read is abandoned.
func relay(_ context.Context, conn net.Conn, _ bool) error {
	go func() {
		io.Copy(conn, os.Stdin)
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
	}()
	_, err := io.Copy(os.Stdout, conn)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func printPlayers(players map[string]string) {
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tSTATUS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, players[name])
	}
	w.Flush()
}

func printRooms(rooms map[string]wire.RoomInfo) {
	names := make([]string, 0, len(rooms))
	for name := range rooms {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tCREATOR\tSTATUS")
	for _, name := range names {
		r := rooms[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, r.Creator, r.Status)
	}
	w.Flush()
}

func printGames(games []wire.GameInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tPUBLISHER\tDESCRIPTION")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\n", g.Name, g.Publisher, g.Description)
	}
	w.Flush()
}
