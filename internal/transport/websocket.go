// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"tuner/internal/log"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 64
	writeTimeout   = time.Second
)

// WebSocketTransport broadcasts JSON-encoded values to every client connected
// at /ws.
//
// Thread Safety:
//   - Send only enqueues; a single goroutine writes to clients
//   - The client map is guarded by clientsMu
//   - Sends closer together than minSendInterval are dropped
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	server    *http.Server
	listener  net.Listener

	broadcast chan any
	mu        sync.Mutex // guards closed, lastSend and the broadcast channel
	closed    bool
	done      sync.WaitGroup

	lastSend        time.Time
	minSendInterval time.Duration
}

// NewWebSocketTransport listens on addr and starts serving immediately.
// Pass ":0" to pick a free port; Addr reports the bound address.
func NewWebSocketTransport(addr string, minSendInterval time.Duration) (*WebSocketTransport, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // local dashboards
			},
		},
		clients:         make(map[*websocket.Conn]bool),
		listener:        listener,
		broadcast:       make(chan any, broadcastQueue),
		minSendInterval: minSendInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wst.done.Add(2)
	go func() {
		defer wst.done.Done()
		log.Infof("transport: websocket server listening on %s/ws", listener.Addr())
		if err := wst.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("transport: websocket server error: %v", err)
		}
	}()
	go func() {
		defer wst.done.Done()
		wst.handleBroadcasts()
	}()

	return wst, nil
}

// Addr returns the address the server is bound to.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("transport: websocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("transport: websocket client connected, total: %d", total)

	// Clients never send; a read error means the connection is gone.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		log.Infof("transport: websocket client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for data := range wst.broadcast {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Errorf("transport: failed to encode %T: %v", data, err)
			continue
		}

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warnf("transport: dropping websocket client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues data for broadcast. It drops data when rate limited or when the
// queue is full and never blocks.
func (wst *WebSocketTransport) Send(data any) error {
	wst.mu.Lock()
	defer wst.mu.Unlock()

	if wst.closed {
		return errors.New("websocket transport is closed")
	}

	now := time.Now()
	if now.Sub(wst.lastSend) < wst.minSendInterval {
		return nil
	}

	select {
	case wst.broadcast <- data:
		wst.lastSend = now
	default:
		log.Debugf("transport: websocket queue full, dropping frame")
	}
	return nil
}

// Close shuts down the server and disconnects every client. It is safe to
// call more than once.
func (wst *WebSocketTransport) Close() error {
	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		return nil
	}
	wst.closed = true
	close(wst.broadcast)
	wst.mu.Unlock()

	err := wst.server.Close()

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	wst.done.Wait()
	log.Infof("transport: websocket server closed")
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
