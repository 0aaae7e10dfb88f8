package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
)

const (
	heartbeat42 = "8=FIX.4.2|9=42|35=0|49=A|56=B|34=12|52=20100304-07:59:30|10=185|"
	// Same frame with '|' as the on-wire delimiter.
	heartbeat42Pipe = "8=FIX.4.2|9=42|35=0|49=A|56=B|34=12|52=20100304-07:59:30|10=022|"
)

func wire(s string) []byte {
	return []byte(strings.ReplaceAll(s, "|", "\x01"))
}

func TestDecodeThenEncodeRestoresFrames(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	input := wire(heartbeat42 + heartbeat42)

	var decoded bytes.Buffer
	if err := run(ctx, "decode", nil, bytes.NewReader(input), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(decoded.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %d: %q", len(lines), decoded.String())
	}
	var m protocol.MessageMirror
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal mirror: %v", err)
	}
	if m.Name != "Heartbeat" || len(m.Header) != 4 {
		t.Fatalf("unexpected mirror %#v", m)
	}

	var encoded bytes.Buffer
	if err := run(ctx, "encode", nil, &decoded, &encoded); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(encoded.Bytes(), input) {
		t.Fatalf("round trip differs:\n got %q\nwant %q", encoded.Bytes(), input)
	}
}

func TestDecodeTextWithPipeDelimiter(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	args := []string{"-delimiter", "pipe", "-format", "text", "-dict", "FIX.4.2"}
	if err := run(context.Background(), "decode", args, strings.NewReader(heartbeat42Pipe), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "8=FIX.4.2|35=0|49=A|56=B|34=12|52=20100304-07:59:30|\n"
	if out.String() != want {
		t.Fatalf("got %q want %q", out.String(), want)
	}
}

func TestDecodeSkipsInvalidUnlessStrict(t *testing.T) {
	testlog.Start(t)
	bad := strings.Replace(heartbeat42, "10=185", "10=186", 1)
	input := wire(bad + heartbeat42)

	var out bytes.Buffer
	if err := run(context.Background(), "decode", nil, bytes.NewReader(input), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 1 {
		t.Fatalf("expected one decoded message, got %d", n)
	}

	err := run(context.Background(), "decode", []string{"-strict"}, bytes.NewReader(input), &bytes.Buffer{})
	if !errors.Is(err, protocol.ErrChecksum) {
		t.Fatalf("expected checksum error in strict mode, got %v", err)
	}
}

func TestDecodeFatalLength(t *testing.T) {
	testlog.Start(t)
	err := run(context.Background(), "decode", nil, bytes.NewReader(wire("8=FIX.4.2|9=abc|35=0|10=000|")), &bytes.Buffer{})
	if !errors.Is(err, protocol.ErrMalformedLength) {
		t.Fatalf("expected malformed length, got %v", err)
	}
}

func TestEncodeRequiresDictionary(t *testing.T) {
	testlog.Start(t)
	err := run(context.Background(), "encode", nil, strings.NewReader(`{"msg_type":"0","body":[]}`), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "begin_string") {
		t.Fatalf("expected begin_string error, got %v", err)
	}
}

func TestDictListing(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	if err := run(context.Background(), "dict", nil, nil, &out); err != nil {
		t.Fatalf("dict: %v", err)
	}
	for _, id := range []string{"FIX.4.2", "FIX.4.4", "FIXT.1.1", "FIX.5.0SP2"} {
		if !strings.Contains(out.String(), id) {
			t.Fatalf("listing missing %s:\n%s", id, out.String())
		}
	}

	out.Reset()
	if err := run(context.Background(), "dict", []string{"FIX.4.4", "NewOrderSingle"}, nil, &out); err != nil {
		t.Fatalf("dict layout: %v", err)
	}
	if !strings.Contains(out.String(), "ClOrdID") || !strings.Contains(out.String(), "required") {
		t.Fatalf("layout missing ClOrdID:\n%s", out.String())
	}

	if err := run(context.Background(), "dict", []string{"FIX.4.4", "nope"}, nil, &out); err == nil {
		t.Fatalf("expected unknown message error")
	}
}

func TestTailDialsPeer(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = nc.Write(wire(heartbeat42))
		_ = nc.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	if err := run(ctx, "tail", []string{"-addr", ln.Addr().String(), "-format", "text"}, nil, &out); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !strings.HasPrefix(out.String(), "8=FIX.4.2|35=0|") {
		t.Fatalf("unexpected tail output %q", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	if err := run(context.Background(), "tail", nil, nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("tail without -addr or -listen must fail")
	}
	if err := run(context.Background(), "bogus", nil, nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("unknown command must fail")
	}
}
