package pkg

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func readMessage(t *testing.T, conn Transport) MessageInterface {
	t.Helper()
	type result struct {
		msg MessageInterface
		err error
	}
	ch := make(chan result, 1)
	go func() {
		env, err := conn.ReadMessage()
		if err != nil {
			ch <- result{err: err}
			return
		}
		msg, err := env.Unwrap()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatal(r.err)
		}
		return r.msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading message")
	}
	return nil
}

func TestServerWebsocket(t *testing.T) {
	s := NewServer(&Config{Port: 8080, QueueSize: 16})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + DefaultMatch

	var conns []Transport
	for _, want := range []Role{White, Black, Spectator} {
		conn, err := Dial(url)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		conns = append(conns, conn)

		if r, ok := readMessage(t, conn).(MessageRole); !ok || r.Role != want {
			t.Fatalf("expected role %s, got %#v", want, r)
		}
		if g, ok := readMessage(t, conn).(MessageGame); !ok || g.Fen != startFEN {
			t.Fatalf("expected start snapshot, got %#v", g)
		}
	}

	env, err := Wrap(MessageMove{Move: "e2e4"})
	if err != nil {
		t.Fatal(err)
	}
	if err := conns[0].WriteMessage(env); err != nil {
		t.Fatal(err)
	}
	want := MessageMove{Move: "e2e4", Ply: 1, Outcome: OutcomeNone}
	for i, conn := range conns {
		if got := readMessage(t, conn); got != want {
			t.Errorf("connection %d got %#v, want %#v", i, got, want)
		}
	}

	// spectators are refused, and only they hear about it
	env, _ = Wrap(MessageMove{Move: "e7e5"})
	if err := conns[2].WriteMessage(env); err != nil {
		t.Fatal(err)
	}
	if got, ok := readMessage(t, conns[2]).(MessageReject); !ok || got.Reason != ReasonNotAPlayer {
		t.Errorf("unexpected reply %#v", got)
	}

	env, _ = Wrap(MessageResync{})
	if err := conns[1].WriteMessage(env); err != nil {
		t.Fatal(err)
	}
	if got, ok := readMessage(t, conns[1]).(MessageGame); !ok || got.Ply != 1 {
		t.Errorf("unexpected snapshot %#v", got)
	}
}

func TestServerMalformedFrame(t *testing.T) {
	s := NewServer(&Config{Port: 8080, QueueSize: 16})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/frames", nil)
	if err != nil {
		t.Fatal(err)
	}
	conn := NewWebsocketTransport(ws, false)
	defer conn.Close()
	readMessage(t, conn)
	readMessage(t, conn)

	for _, frame := range []string{"e2e4", `{"type":"move","data":`, `{"type":["move"]}`} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
	}
	env, _ := Wrap(MessageMove{Move: "g1f3"})
	if err := conn.WriteMessage(env); err != nil {
		t.Fatal(err)
	}
	if got, ok := readMessage(t, conn).(MessageMove); !ok || got.Move != "g1f3" {
		t.Errorf("expected g1f3 broadcast, got %#v", got)
	}
	if s.Match("frames").Seat(White) == nil {
		t.Error("malformed frames cost the seat")
	}
}

func TestServerMatchesAreSeparate(t *testing.T) {
	s := NewServer(&Config{Port: 8080, QueueSize: 16})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"

	for _, id := range []string{"one", "two"} {
		conn, err := Dial(base + id)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		if r, ok := readMessage(t, conn).(MessageRole); !ok || r.Role != White {
			t.Errorf("match %s: expected White, got %#v", id, r)
		}
	}
}

func TestServerHTTP(t *testing.T) {
	s := NewServer(&Config{Port: 8080, QueueSize: 16})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	tests := []struct {
		path        string
		contentType string
		contains    []byte
	}{
		{"/healthz", "text/plain; charset=utf-8", []byte("Ok")},
		{"/version", "text/plain; charset=utf-8", []byte("chessrelay v" + ReleaseVersion)},
		{"/", "text/html; charset=utf-8", []byte("<html")},
		{"/game/main", "text/html; charset=utf-8", []byte("app.js")},
		{"/qr/main", "image/png", []byte("\x89PNG")},
		{"/assets/app.js", "", []byte("WebSocket")},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", tt.path, resp.StatusCode)
			continue
		}
		if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
			t.Errorf("%s: content type %q", tt.path, resp.Header.Get("Content-Type"))
		}
		if !bytes.Contains(body, tt.contains) {
			t.Errorf("%s: body does not contain %q", tt.path, tt.contains)
		}
	}
}

func TestServerMetrics(t *testing.T) {
	s := NewServer(&Config{Port: 8080, QueueSize: 16})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	m := s.Match("busy")
	ps := seat(m, 2)
	if err := m.Submit(ps[0], "e2e4"); err != nil {
		t.Fatal(err)
	}
	s.Match("quiet")

	get := func(query string) []map[string]any {
		resp, err := http.Get(srv.URL + "/metrics" + query)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	all := get("")
	if len(all) != 2 || all[0]["match"] != "busy" || all[1]["match"] != "quiet" {
		t.Fatalf("unexpected metrics %v", all)
	}
	if all[0]["ply"] != float64(1) || all[0]["connections"] != float64(2) {
		t.Errorf("unexpected busy match metrics %v", all[0])
	}
	counters, _ := all[0]["metrics"].(map[string]any)
	if counters["moves_accepted"] != float64(1) {
		t.Errorf("unexpected counters %v", counters)
	}

	if one := get("?match=quiet"); len(one) != 1 || one[0]["ply"] != float64(0) {
		t.Errorf("unexpected filtered metrics %v", one)
	}
	if none := get("?match=missing"); len(none) != 0 {
		t.Errorf("unknown match reported %v", none)
	}
}

func TestServerReap(t *testing.T) {
	s := NewServer(&Config{QueueSize: 16, IdleTimeout: time.Minute})
	s.Match("empty")
	busy := s.Match("busy")
	seat(busy, 1)

	s.reap(time.Now().Add(time.Second))
	if _, ok := s.Matches["empty"]; ok {
		t.Error("idle match was not reaped")
	}
	if _, ok := s.Matches["busy"]; !ok {
		t.Error("match with a connection was reaped")
	}
}

func TestServerLookupKeepsMatchAlive(t *testing.T) {
	s := NewServer(&Config{QueueSize: 16, IdleTimeout: time.Minute})
	m := s.Match("joining")
	m.lastActive = time.Now().Add(-time.Hour)

	// a connection looked the match up and is about to join it
	if got := s.Match("joining"); got != m {
		t.Fatal("lookup created a second match")
	}
	s.reap(time.Now().Add(-time.Minute))
	if s.Matches["joining"] != m {
		t.Error("match reaped between lookup and connect")
	}
}

func TestLocalAddress(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:8080":   "127.0.0.1:8080",
		":1998":          "127.0.0.1:1998",
		"[::]:22":        "127.0.0.1:22",
		"10.0.0.2:8080":  "10.0.0.2:8080",
		"not-an-address": "not-an-address",
	}
	for in, want := range tests {
		if got := localAddress(in); got != want {
			t.Errorf("localAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
