// Package debugserver implements the optional dev-mode reload broadcaster
// described in SPEC_FULL.md: a small WebSocket server that notifies
// connected dev-tools clients with a `{"type":"reload"}` message whenever
// `--watch` completes a hot reload. This supplements, in reduced form, the
// richer remote-control protocol sketched in
// original_source/include/mystral/debug/debug_server.h (full command/
// response RPC is out of scope here — only the reload broadcast survives).
package debugserver

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Server accepts WebSocket connections from dev-tools clients and
// broadcasts reload notifications to all of them.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New constructs a Server and binds its listener on addr (e.g.
// "127.0.0.1:9229") immediately; connections are not served until Start
// is called.
func New(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		clients:  make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	s.httpServer = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves connections in the background until Stop is called.
// Grounded on the teacher's own pattern of running auxiliary network
// servers (its HTTP bridge in runtime.go) off the main engine goroutine,
// communicating only through explicit synchronized state.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			log.Printf("debugserver: serve error: %v", err)
		}
	}()
}

// Stop closes all client connections and shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	for c := range s.clients {
		_ = c.Close(websocket.StatusNormalClosure, "server shutting down")
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		_ = c.CloseNow()
	}()

	// Clients of this channel are passive listeners; the only read loop
	// needed is to notice when they disconnect.
	for {
		_, _, err := c.Read(r.Context())
		if err != nil {
			return
		}
	}
}

// reloadMessage is the single notification this server ever sends.
const reloadMessage = `{"type":"reload"}`

// BroadcastReload sends reloadMessage to every connected client. Called by
// the `--watch` hot-reload path (spec.md §4.6) after a successful reload.
func (s *Server) BroadcastReload() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, []byte(reloadMessage)); err != nil {
			log.Printf("debugserver: broadcast to client failed: %v", err)
		}
	}
}
