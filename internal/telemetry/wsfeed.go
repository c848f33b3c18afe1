package telemetry

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSFeed is a debug, read-only WebSocket endpoint that broadcasts every
// predicate snapshot to whichever operator tools are currently connected.
// Grounded on 1ureka-roj1/internal/signaling/server.go (listen on a port,
// http.Serve a mux, websocket.Upgrader.Upgrade), repurposed from "exchange
// one SDP offer/answer with a single PIN-authenticated peer" to "fan out
// read-only snapshots to any number of connected clients" — see
// SPEC_FULL.md's DOMAIN STACK table.
type WSFeed struct {
	listener net.Listener

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StartWSFeed binds a listener on port and serves /feed, returning
// immediately; call Close to tear it down.
func StartWSFeed(port int) (*WSFeed, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to start ws feed: %w", err)
	}

	f := &WSFeed{
		listener: ln,
		clients:  make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", f.handleFeed)

	go func() {
		_ = http.Serve(ln, mux)
	}()

	return f, nil
}

func (f *WSFeed) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.clients[conn] = struct{}{}
	f.mu.Unlock()

	// Drain and discard anything the client sends; we only care about
	// detecting disconnects so we can stop broadcasting to it.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.mu.Lock()
				delete(f.clients, conn)
				f.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Broadcast sends a predicate snapshot to every connected client. Meant to
// be passed (wrapped) as a PredicateLambda.
func (f *WSFeed) Broadcast(snapshot map[uint32]uint64) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(f.clients, conn)
		}
	}
}

// Close stops accepting new feed connections.
func (f *WSFeed) Close() error {
	return f.listener.Close()
}
