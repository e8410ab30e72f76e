// Package dashboard pushes a live snapshot of every pipeline's state over
// a websocket connection on a fixed interval. It is a one-way status
// feed: the dashboard broadcasts, it never reads client messages back.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/messixukejia/loongcollector/internal/runtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is one broadcast frame: every live pipeline's name, state, and
// in-flight item count.
type Snapshot struct {
	Pipelines []PipelineStatus `json:"pipelines"`
}

type PipelineStatus struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	InProcessCnt int64  `json:"in_process_count"`
}

// Server upgrades incoming connections and registers them to receive
// snapshots pushed on Interval.
type Server struct {
	rt       *runtime.Runtime
	Interval time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	httpSrv *http.Server
	stop    chan struct{}
	done    chan struct{}
}

// New builds a dashboard server bound to rt and addr, broadcasting every
// interval (defaulting to one second if interval is zero or negative).
// Connections upgrade at /ws.
func New(rt *runtime.Runtime, addr string, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		rt:       rt,
		Interval: interval,
		conns:    make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleConnection)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// HandleConnection upgrades an HTTP request to a websocket and registers
// it for broadcast until the client disconnects.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard anything the client sends; this socket is
	// broadcast-only but must still service reads to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Start runs the websocket listener and the broadcast loop in the
// background.
func (s *Server) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		_ = s.httpSrv.ListenAndServe()
	}()
	go s.run()
}

// Stop ends the broadcast loop, closes every registered connection, and
// shuts down the websocket listener.
func (s *Server) Stop() error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	return s.httpSrv.Close()
}

func (s *Server) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.broadcast(s.snapshot())
		}
	}
}

func (s *Server) snapshot() Snapshot {
	names := s.rt.Pipelines.Names()
	out := make([]PipelineStatus, 0, len(names))
	for _, name := range names {
		p, ok := s.rt.Pipelines.FindPipelineByConfigName(name)
		if !ok {
			continue
		}
		out = append(out, PipelineStatus{
			Name:         name,
			State:        p.State().String(),
			InProcessCnt: p.InProcessCount(),
		})
	}
	return Snapshot{Pipelines: out}
}

func (s *Server) broadcast(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
}
