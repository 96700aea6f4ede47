package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/qnkhuat/chessrelay/pkg/web"
)

const (
	httpTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	qrSize          = 320
)

type Server struct {
	cfg *Config

	mu      sync.Mutex
	Matches map[string]*Match

	listeners []net.Listener
}

func NewServer(cfg *Config) *Server {
	return &Server{
		cfg:     cfg,
		Matches: make(map[string]*Match),
	}
}

// Match returns the match with the given ID, creating it on first use.
func (s *Server) Match(id string) *Match {
	if id == "" {
		id = DefaultMatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.Matches[id]; ok {
		// keeps the reaper off a match someone is about to join
		m.touch()
		return m
	}
	m := NewMatch(id)
	s.Matches[id] = m
	Log.Infow("match created", "match", id)
	return m
}

// AddConn attaches a transport to a match and serves it until it disconnects.
func (s *Server) AddConn(conn Transport, matchID string) {
	m := s.Match(matchID)
	p := NewPlayer(conn, s.cfg.QueueSize)
	go p.HandleWrite()
	m.Connect(p)
	p.HandleRead(m)
}

// CleanIdleMatches drops matches nobody has used for the idle timeout.
func (s *Server) CleanIdleMatches(ctx context.Context) {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap(time.Now().Add(-s.cfg.IdleTimeout))
		}
	}
}

func (s *Server) reap(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.Matches {
		if m.Idle(cutoff) {
			delete(s.Matches, id)
			Log.Infow("match reaped", "match", id)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.AddConn(NewWebsocketTransport(ws, true), ps.ByName("match"))
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := web.Assets.ReadFile("assets/index.html")
	if err != nil {
		http.Error(w, "missing index", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(s.cfg, w)
	_, _ = w.Write(data)
}

func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + "/game/" + ps.ByName("match")

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.Matches))
	matches := make(map[string]*Match, len(s.Matches))
	for id, m := range s.Matches {
		ids = append(ids, id)
		matches[id] = m
	}
	s.mu.Unlock()
	sort.Strings(ids)

	if want := r.URL.Query().Get("match"); want != "" {
		ids = []string{want}
	}

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m, ok := matches[id]
		if !ok {
			continue
		}
		snap := m.Snapshot()
		out = append(out, map[string]any{
			"match":       id,
			"ply":         snap.Ply,
			"fen":         snap.Fen,
			"outcome":     snap.Outcome,
			"connections": m.NumPlayers(),
			"metrics":     m.Metrics.Snapshot(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func serveHealthCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Ok\n"))
}

func serveVersion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("chessrelay v" + ReleaseVersion + "\n"))
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://cdnjs.cloudflare.com; connect-src 'self' ws: wss:")
	if cfg.Scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()

	assets, err := fs.Sub(web.Assets, "assets")
	if err != nil {
		panic(err)
	}

	mux.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		http.Redirect(w, r, "/game/"+DefaultMatch, http.StatusTemporaryRedirect)
	})
	mux.GET("/game/:match", s.serveIndex)
	mux.GET("/ws/:match", s.serveWS)
	mux.GET("/qr/:match", s.serveQR)
	mux.ServeFiles("/assets/*filepath", http.FS(assets))
	mux.GET("/metrics", s.serveMetrics)
	mux.GET("/healthz", serveHealthCheck)
	mux.GET("/version", serveVersion)

	return mux
}

// ListenTCP accepts line-protocol connections into the default match.
func (s *Server) ListenTCP(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()

	Log.Infow("listening", "tcp", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			Log.Warnw("accept failed", "err", err)
			continue
		}
		go s.AddConn(NewLineTransport(conn), DefaultMatch)
	}
}

func (s *Server) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
}

// ListenAndServe runs every configured front door until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: httpTimeout,
	}

	errs := make(chan error, 3)

	go s.CleanIdleMatches(ctx)

	if s.cfg.ListenTCP != "" {
		go func() { errs <- s.ListenTCP(s.cfg.ListenTCP) }()
	}

	if s.cfg.ListenSSH != "" {
		target := "ws://" + localAddress(srv.Addr) + "/ws/" + DefaultMatch
		if s.cfg.ListenTCP != "" {
			target = "tcp://" + localAddress(s.cfg.ListenTCP)
		}
		sshServer, err := NewSSHServer(s.cfg, target)
		if err != nil {
			return err
		}
		go func() { errs <- sshServer.ListenAndServe() }()
		defer sshServer.Close()
	}

	go func() {
		var err error
		Log.Infow("listening", "http", s.cfg.Scheme()+"://"+srv.Addr)
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	s.StopListening()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	s.mu.Lock()
	matches := make([]*Match, 0, len(s.Matches))
	for _, m := range s.Matches {
		matches = append(matches, m)
	}
	s.mu.Unlock()
	for _, m := range matches {
		m.Close()
	}
	return err
}

// localAddress turns a wildcard bind address into one a local client can dial.
func localAddress(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
