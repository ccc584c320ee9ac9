// Package client talks to the lobby over one TCP connection. Requests are
// correlated with their replies by request_id; messages without an id are
// pushes and go to the push handler in arrival order.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"playmatch/lobby/internal/wire"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

var (
	ErrTimeout = errors.New("client: timed out waiting for reply")
	ErrClosed  = errors.New("client: connection closed")
)

// RemoteError is a reply with status "error".
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// PushHandler receives pushes. It runs on its own goroutine, so it may call
// back into the client.
type PushHandler func(wire.Reply)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithPushHandler(h PushHandler) Option {
	return func(c *Client) { c.onPush = h }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l }
}

type Client struct {
	conn    net.Conn
	timeout time.Duration
	onPush  PushHandler
	log     *logrus.Entry

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan wire.Reply
	closed  bool

	pushMu   sync.Mutex
	pushes   []wire.Reply
	pushWake chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the lobby at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial lobby %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection and starts reading from it.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:     conn,
		timeout:  5 * time.Second,
		log:      logrus.WithField("component", "client"),
		pending:  make(map[string]chan wire.Reply),
		pushWake: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	go c.pushLoop()
	return c
}

// Close closes the connection. Calls in flight fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Call sends req and waits for its reply. A reply with status "error" is
// returned together with a *RemoteError.
func (c *Client) Call(ctx context.Context, req wire.Request) (wire.Reply, error) {
	id := ulid.Make().String()
	req.RequestID = id
	slot := make(chan wire.Reply, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return wire.Reply{}, ErrClosed
	}
	c.pending[id] = slot
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(req); err != nil {
		c.Close()
		return wire.Reply{}, fmt.Errorf("%w: send %s: %v", ErrClosed, req.Action, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-slot:
		if reply.Status == wire.StatusError {
			return reply, &RemoteError{Action: req.Action, Message: reply.Message}
		}
		return reply, nil
	case <-ctx.Done():
		return wire.Reply{}, ctx.Err()
	case <-timer.C:
		return wire.Reply{}, fmt.Errorf("%s: %w", req.Action, ErrTimeout)
	case <-c.done:
		return wire.Reply{}, ErrClosed
	}
}

func (c *Client) send(req wire.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetWriteDeadline(time.Time{})
	return wire.Write(c.conn, req)
}

func (c *Client) readLoop() {
	defer c.Close()

	for msg, err := range wire.Receive[wire.Reply](c.conn) {
		if err != nil {
			var ferr *wire.FramingError
			if errors.As(err, &ferr) {
				c.log.WithError(err).Warn("Dropping undecodable frame")
				continue
			}
			c.log.WithError(err).Debug("Connection read failed")
			return
		}

		if msg.IsPush() {
			c.enqueuePush(msg)
			continue
		}

		c.mu.Lock()
		slot, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()

		if !ok {
			c.log.WithFields(logrus.Fields{"request_id": msg.RequestID, "status": msg.Status}).Warn("Discarding late reply")
			continue
		}
		slot <- msg
	}
}

func (c *Client) enqueuePush(msg wire.Reply) {
	c.pushMu.Lock()
	c.pushes = append(c.pushes, msg)
	c.pushMu.Unlock()

	select {
	case c.pushWake <- struct{}{}:
	default:
	}
}

func (c *Client) pushLoop() {
	for {
		select {
		case <-c.pushWake:
		case <-c.done:
			return
		}

		c.pushMu.Lock()
		batch := c.pushes
		c.pushes = nil
		c.pushMu.Unlock()

		for _, msg := range batch {
			if c.onPush == nil {
				c.log.WithField("status", msg.Status).Debug("Push ignored")
				continue
			}
			c.onPush(msg)
		}
	}
}
