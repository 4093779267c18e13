package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 5 * time.Second
	defaultSendSize = 64
)

// peer is one websocket client with its own writer goroutine.
type peer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newPeer(conn *websocket.Conn, size int) *peer {
	if size <= 0 {
		size = defaultSendSize
	}
	return &peer{id: uuid.NewString(), conn: conn, send: make(chan []byte, size)}
}

// writePump drains send until it is closed or a write fails.
func (p *peer) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (p *peer) close() {
	p.once.Do(func() { close(p.send) })
}

// broadcaster fans messages out to peers without ever blocking the sender.
// A peer whose buffer is full is disconnected.
type broadcaster struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

func newBroadcaster() *broadcaster {
	return &broadcaster{peers: make(map[string]*peer)}
}

func (b *broadcaster) add(p *peer) {
	b.mu.Lock()
	b.peers[p.id] = p
	b.mu.Unlock()
}

func (b *broadcaster) remove(p *peer) {
	b.mu.Lock()
	delete(b.peers, p.id)
	p.close()
	b.mu.Unlock()
}

func (b *broadcaster) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// broadcast returns the ids of peers dropped for being too slow.
func (b *broadcaster) broadcast(msg []byte) []string {
	var slow []*peer
	b.mu.RLock()
	for _, p := range b.peers {
		select {
		case p.send <- msg:
		default:
			slow = append(slow, p)
		}
	}
	b.mu.RUnlock()

	ids := make([]string, 0, len(slow))
	for _, p := range slow {
		b.remove(p)
		ids = append(ids, p.id)
	}
	return ids
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	for id, p := range b.peers {
		delete(b.peers, id)
		p.close()
	}
	b.mu.Unlock()
}
