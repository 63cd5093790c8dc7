package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingEvery  = pongWait * 9 / 10 // must fire before the peer's read deadline lapses
	queueDepth = 16
	readLimit  = 512 // subscribers only send control frames
)

// subscriber is one WebSocket connection. queue is closed by the Hub, which
// tells writeLoop to send a close frame and exit.
type subscriber struct {
	conn   *websocket.Conn
	remote string
	queue  chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		queue:  make(chan []byte, queueDepth),
	}
}

// offer enqueues msg without blocking and reports whether there was room.
func (s *subscriber) offer(msg []byte) bool {
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) write(kind int, payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, payload)
}

func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		select {
		case msg, open := <-s.queue:
			if !open {
				_ = s.write(websocket.CloseMessage, nil)
				return
			}
			if s.write(websocket.TextMessage, msg) != nil {
				return
			}
		case <-ping.C:
			if s.write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames so pongs and close frames get processed,
// and returns once the peer goes away or stops answering pings.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
