package hub

import (
	"errors"
	"net"
	"sync"
	"time"

	"playmatch/lobby/internal/wire"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrPeerGone is returned by Send once a peer has been closed.
var ErrPeerGone = errors.New("hub: peer connection is gone")

// Peer is one client connection. The hub owns its lifetime; everything else
// only holds a reference to it.
type Peer struct {
	ID   uuid.UUID
	conn net.Conn

	outbox       chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          *logrus.Entry
}

// Send queues v for delivery without blocking. A full outbox means the peer
// stopped reading; it is closed like a peer whose write failed.
func (p *Peer) Send(v any) error {
	frame, err := wire.Encode(v)
	if err != nil {
		return err
	}

	select {
	case <-p.done:
		return ErrPeerGone
	default:
	}

	select {
	case p.outbox <- frame:
		return nil
	case <-p.done:
		return ErrPeerGone
	default:
		p.fail(errors.New("outbox full"))
		return ErrPeerGone
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Done is closed once the peer is closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// RemoteIP is the host part of the peer's remote address.
func (p *Peer) RemoteIP() string {
	addr := p.conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (p *Peer) fail(err error) {
	select {
	case <-p.done:
		return
	default:
	}
	p.log.WithError(err).Warn("Dropping peer after failed send")
	p.Close()
}

func (p *Peer) writeLoop() {
	for {
		select {
		case frame := <-p.outbox:
			if p.writeTimeout > 0 {
				p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			}
			if _, err := p.conn.Write(frame); err != nil {
				p.fail(err)
				return
			}
		case <-p.done:
			return
		}
	}
}

// Hub tracks every live peer connection.
type Hub struct {
	peers map[uuid.UUID]*Peer
	mu    sync.RWMutex

	outboxSize   int
	writeTimeout time.Duration
}

// NewHub creates a new Hub. outboxSize bounds the frames queued per peer.
func NewHub(outboxSize int, writeTimeout time.Duration) *Hub {
	if outboxSize <= 0 {
		outboxSize = 64
	}
	return &Hub{
		peers:        make(map[uuid.UUID]*Peer),
		outboxSize:   outboxSize,
		writeTimeout: writeTimeout,
	}
}

// Register wraps conn in a Peer and starts its writer.
func (h *Hub) Register(conn net.Conn) *Peer {
	id := uuid.New()
	peer := &Peer{
		ID:           id,
		conn:         conn,
		outbox:       make(chan []byte, h.outboxSize),
		done:         make(chan struct{}),
		writeTimeout: h.writeTimeout,
		log: logrus.WithFields(logrus.Fields{
			"component": "hub",
			"peer":      id.String(),
			"remote":    conn.RemoteAddr(),
		}),
	}

	h.mu.Lock()
	h.peers[id] = peer
	h.mu.Unlock()

	go peer.writeLoop()
	return peer
}

// Unregister closes the peer and forgets it.
func (h *Hub) Unregister(peer *Peer) {
	h.mu.Lock()
	delete(h.peers, peer.ID)
	h.mu.Unlock()

	peer.Close()
}

// Broadcast sends v to every registered peer.
func (h *Hub) Broadcast(v any) {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		peer.Send(v)
	}
}

// Len is the number of registered peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CloseAll closes every registered peer. Their dispatchers unregister them
// as their read loops end.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		peer.Close()
	}
}
