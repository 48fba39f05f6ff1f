// Package monitor serves the sequencer's progress over HTTP and websockets.
package monitor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/arcaluminis-neopixel/internal/diagnostics"
	"github.com/coreman2200/arcaluminis-neopixel/internal/sequence"
	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// Event is the JSON pushed to /frames for every transmitted frame.
type Event struct {
	T       int64  `json:"t"`
	FrameID int    `json:"frame_id"`
	Color   string `json:"color"`
	Wire    string `json:"wire"`
}

type Server struct {
	mu        sync.Mutex
	backend   string
	state     sequence.State
	frames    int
	last      string
	faults    int
	startTime time.Time
	enc       ws2812.SerialEncoder
	wire      []byte

	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
}

// New builds a monitor for the named backend. Frame events carry the serial
// wire encoding at the default clock.
func New(backend string) *Server {
	enc, _ := ws2812.NewSerialEncoder(ws2812.DefaultSerialClock)
	return &Server{
		backend:     backend,
		state:       sequence.Idle,
		startTime:   time.Now(),
		enc:         enc,
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
}

// Hooks feeds sequencer progress into the monitor.
func (s *Server) Hooks() sequence.Hooks {
	return sequence.Hooks{
		OnFrame: s.frame,
		OnState: func(st sequence.State) {
			s.mu.Lock()
			s.state = st
			s.mu.Unlock()
		},
	}
}

func (s *Server) frame(ev sequence.FrameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.last = ev.Color.String()
	s.wire = s.enc.AppendFrame(s.wire[:0], ev.Frame)
	b, _ := json.Marshal(Event{
		T:       ev.At.UnixNano(),
		FrameID: ev.Index,
		Color:   s.last,
		Wire:    hex.EncodeToString(s.wire[:ws2812.WireBytesPerFrame]),
	})
	broadcast(s.clients, b)
}

// Report pushes d to every /diag client.
func (s *Server) Report(d diag.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Severity == diag.Err {
		s.faults++
	}
	b, _ := json.Marshal(d)
	broadcast(s.diagClients, b)
}

func broadcast(clients map[*websocket.Conn]bool, b []byte) {
	for c := range clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write event")
		}
	}
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	s.subscribe(w, r, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	s.subscribe(w, r, s.diagClients)
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	set[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(set, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Subscribers counts open websocket clients on /frames and /diag.
func (s *Server) Subscribers() (frames, diags int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients), len(s.diagClients)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := map[string]any{
		"backend":  s.backend,
		"state":    s.state,
		"frames":   s.frames,
		"faults":   s.faults,
		"last":     s.last,
		"uptime_s": time.Since(s.startTime).Seconds(),
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return withCORS(mux)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("backend", s.backend).Msg("monitor listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		_ = srv.Close()
		<-errc
		return nil
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
