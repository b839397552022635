package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"route-profile-service/internal/api/dto"
	"route-profile-service/internal/domain"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer    = 8
	streamWriteWait = 5 * time.Second
	streamPongWait  = 60 * time.Second
	streamPing      = streamPongWait * 9 / 10
)

type subscriber struct {
	send chan []byte
}

// RouteHub fans committed route snapshots out to websocket subscribers.
// New subscribers receive the latest snapshot first. A subscriber whose
// buffer is full is disconnected.
type RouteHub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
	last []byte
}

func NewRouteHub() *RouteHub {
	h := &RouteHub{
		subs: make(map[*subscriber]struct{}),
	}
	h.last = encodeSnapshot(domain.RouteSnapshot{})
	return h
}

func encodeSnapshot(s domain.RouteSnapshot) []byte {
	b, err := json.Marshal(dto.StreamMessage{Type: "snapshot", Snapshot: dto.FromSnapshot(s)})
	if err != nil {
		log.Printf("stream encode failed: err=%v", err)
		return nil
	}
	return b
}

// Publish is the RouteTracker commit listener.
func (h *RouteHub) Publish(s domain.RouteSnapshot) {
	msg := encodeSnapshot(s)
	if msg == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = msg
	for sub := range h.subs {
		select {
		case sub.send <- msg:
		default:
			log.Printf("stream subscriber dropped: reason=slow")
			delete(h.subs, sub)
			close(sub.send)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *RouteHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *RouteHub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan []byte, streamBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	sub.send <- h.last
	h.subs[sub] = struct{}{}
	return sub
}

func (h *RouteHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// ServeHTTP upgrades GET /route/stream to a websocket.
func (h *RouteHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream upgrade failed: err=%v", err)
		return
	}

	sub := h.subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(conn, sub, done)
	h.unsubscribe(sub)
	conn.Close()
	<-done
}

func (h *RouteHub) writeLoop(conn *websocket.Conn, sub *subscriber, done <-chan struct{}) {
	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
