package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/auth"
	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T, s *Inspector) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.HTTPRouter())
	t.Cleanup(srv.Close)
	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) streamEvent {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev streamEvent
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestStreamReassemblesSplitFrames(t *testing.T) {
	testlog.Start(t)
	ws := dialStream(t, newInspector(t))

	raw := wire(heartbeat42)
	for _, chunk := range [][]byte{raw[:17], raw[17:], wire("8=FIX.4.2|9=42|35=0|49=A|56=B|34=12|52=20100304-07:59:30|10=000|")} {
		if err := ws.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ev := readEvent(t, ws)
	if ev.Kind != "message" || ev.Message == nil || ev.Message.MsgType != "0" {
		t.Fatalf("expected heartbeat event, got %#v", ev)
	}
	ev = readEvent(t, ws)
	if ev.Kind != "error" || ev.Error == nil || ev.Error.Kind != "checksum" {
		t.Fatalf("expected checksum error event, got %#v", ev)
	}
	if ev.Error.Offset != len(raw) || ev.Buffered != 0 {
		t.Fatalf("unexpected error position %#v buffered=%d", ev.Error, ev.Buffered)
	}
}

func TestStreamClosesOnFatal(t *testing.T) {
	testlog.Start(t)
	ws := dialStream(t, newInspector(t))
	if err := ws.WriteMessage(websocket.BinaryMessage, wire("8=FIX.4.2|9=x|35=0|10=000|")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, ws)
	if ev.Kind != "fatal" || ev.Error == nil || !ev.Error.Fatal {
		t.Fatalf("expected fatal event, got %#v", ev)
	}
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseUnsupportedData) {
		t.Fatalf("expected unsupported data close, got %v", err)
	}
}

func TestStreamHonoursAuth(t *testing.T) {
	testlog.Start(t)
	s := newInspector(t)
	guarded := New(s.Name, s.Addr, s.dec, nil, WithAuth(auth.StaticToken{Token: "t0ken"}))
	srv := httptest.NewServer(guarded.HTTPRouter())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake failure, got err=%v resp=%v", err, resp)
	}

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer t0ken"}})
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	_ = ws.Close()
}
