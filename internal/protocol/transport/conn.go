package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/observability"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNoEncoder = errors.New("transport: connection has no encoder")
	ErrClosed    = errors.New("transport: connection closed")
)

// Handler receives every non-empty framer event in arrival order. Returning
// an error stops the read loop and Run returns it.
type Handler func(ctx context.Context, ev frame.Event) error

// Conn is one FIX connection. Send may be called from any goroutine; Run
// must be called at most once.
type Conn struct {
	id  string
	nc  net.Conn
	dec frame.Decoder
	enc *protocol.Encoder
	cfg Config
	log zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// New wraps nc. enc may be nil for receive-only connections.
func New(nc net.Conn, dec frame.Decoder, enc *protocol.Encoder, cfg Config) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		nc:     nc,
		dec:    dec,
		enc:    enc,
		cfg:    cfg,
		log:    observability.Logger("transport").With().Str("conn_id", id).Str("remote", remoteAddr(nc)).Logger(),
		closed: make(chan struct{}),
	}
}

func remoteAddr(nc net.Conn) string {
	if addr := nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() string {
	return remoteAddr(c.nc)
}

// Send encodes msg and writes the frame under the write deadline.
func (c *Conn) Send(msg *protocol.Message) error {
	if c.enc == nil {
		return ErrNoEncoder
	}
	b, err := c.enc.Encode(msg)
	if err != nil {
		return err
	}
	return c.write(b, msg.MsgType)
}

func (c *Conn) write(b []byte, msgType string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("transport: write %s: %w", msgType, err)
	}
	begin := ""
	if c.enc != nil {
		begin = c.enc.Dictionary().BeginString
	}
	observability.RecordEncoded(begin, msgType, len(b))
	return nil
}

// Run reads frames until ctx is done, the peer closes, a fatal decode error
// occurs or handler fails. Cancelling ctx closes the connection. A clean
// close by the peer returns nil.
func (c *Conn) Run(ctx context.Context, handler Handler) error {
	done := observability.ConnOpened()
	defer done()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	c.log.Debug().Msg("read loop started")
	r := frame.NewReader(idleReader{c}, c.dec, c.cfg.Limits)
	for {
		ev, err := r.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.log.Debug().Msg("peer closed")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("transport: read: %w", err)
		}
		c.observe(ev)
		if handler != nil {
			if err := handler(ctx, ev); err != nil {
				return err
			}
		}
		if ev.Kind == frame.EventFatal {
			return ev.Err
		}
	}
}

func (c *Conn) observe(ev frame.Event) {
	switch ev.Kind {
	case frame.EventMessage:
		observability.RecordDecoded(ev.Message.BeginString, ev.Message.MsgType, ev.Size)
	case frame.EventError:
		observability.RecordDecodeError(ev.Err.Kind.String())
		c.log.Warn().
			Str("kind", ev.Err.Kind.String()).
			Str("msg_type", ev.Err.MsgType).
			Int("tag", ev.Err.Tag).
			Int("bytes", ev.Size).
			Err(ev.Err).
			Msg("dropped frame")
	case frame.EventFatal:
		observability.RecordDecodeError(ev.Err.Kind.String())
		c.log.Error().Err(ev.Err).Msg("stream unrecoverable")
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// idleReader applies ReadTimeout to every read.
type idleReader struct {
	c *Conn
}

func (r idleReader) Read(p []byte) (int, error) {
	if t := r.c.cfg.ReadTimeout; t > 0 {
		_ = r.c.nc.SetReadDeadline(time.Now().Add(t))
	}
	return r.c.nc.Read(p)
}
