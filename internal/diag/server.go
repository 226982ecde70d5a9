// Package diag serves live streaming diagnostics over HTTP: the latest stats
// snapshot as JSON, a websocket feed of snapshots and a residency map PNG.
package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxel-stream/internal/streaming"
	"voxel-stream/internal/world"
)

// Message is one websocket frame sent to subscribers.
type Message struct {
	Type  string          `json:"type"`
	Seq   uint64          `json:"seq"`
	Stats streaming.Stats `json:"stats"`
}

type client struct {
	id  uint64
	out chan []byte
}

// Server holds the most recent snapshot and fans it out to websocket
// subscribers at a bounded rate.
type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	mu        sync.Mutex
	latest    []byte
	residency []world.ChunkStatus
	clients   map[*client]struct{}

	seq    atomic.Uint64
	nextID atomic.Uint64
}

// NewServer creates a server broadcasting at most perSecond snapshots.
func NewServer(logger *log.Logger, perSecond float64) *Server {
	if perSecond <= 0 {
		perSecond = 4
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		log:     logger,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see below
		},
	}
}

// Publish records a snapshot. It never blocks: subscribers that fall behind
// miss frames. Call it once per frame from the main thread.
func (s *Server) Publish(stats streaming.Stats, residency []world.ChunkStatus) {
	msg := Message{Type: "STATS", Seq: s.seq.Add(1), Stats: stats}
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("diag: encode stats: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = b
	s.residency = residency
	if !s.limiter.Allow() {
		return
	}
	for c := range s.clients {
		select {
		case c.out <- b:
		default:
			// Slow subscriber; it gets the next one.
		}
	}
}

// Subscribers returns the number of connected websocket clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler routes /stats, /ws and /residency.png.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/residency.png", s.residencyHandler)
	return mux
}

func (s *Server) statsHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	b := s.latest
	s.mu.Unlock()
	if b == nil {
		http.Error(rw, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(b)
}

func (s *Server) residencyHandler(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res := s.residency
	s.mu.Unlock()

	img := ResidencyImage(res, 8)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "image/png")
	_, _ = rw.Write(buf.Bytes())
}

func (s *Server) wsHandler(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{id: s.nextID.Add(1), out: make(chan []byte, 8)}
	s.mu.Lock()
	if s.latest != nil {
		c.out <- s.latest
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()
	s.log.Printf("diag: subscriber %d connected from %s", c.id, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Clients send nothing useful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	s.log.Printf("diag: subscriber %d disconnected", c.id)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
