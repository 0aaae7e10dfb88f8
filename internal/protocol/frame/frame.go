package frame

import (
	"errors"
	"fmt"

	"github.com/alexbleotu/ferrumfix/internal/protocol"
)

var (
	ErrBufferFull = errors.New("frame: buffer limit exceeded")
)

// Decoder is satisfied by *protocol.Decoder and *protocol.RegistryDecoder.
type Decoder interface {
	TryDecode(buf []byte) protocol.Outcome
}

// Limits constrains framer memory use.
type Limits struct {
	// MaxBufferBytes caps unconsumed bytes held between polls. It must leave
	// room for the largest frame the decoder accepts.
	MaxBufferBytes int
	// ReadChunk is the read size used by Reader.
	ReadChunk int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBufferBytes: 2 * 1024 * 1024,
		ReadChunk:      4096,
	}
}

func (l Limits) normalized() Limits {
	def := DefaultLimits()
	if l.MaxBufferBytes <= 0 {
		l.MaxBufferBytes = def.MaxBufferBytes
	}
	if l.ReadChunk <= 0 {
		l.ReadChunk = def.ReadChunk
	}
	return l
}

type EventKind int

const (
	EventNeedMoreData EventKind = iota
	EventMessage
	EventError
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventFatal:
		return "fatal"
	default:
		return "need_more_data"
	}
}

// Event is the result of one Poll. Size is the number of bytes the event
// consumed from the buffer.
type Event struct {
	Kind    EventKind
	Message *protocol.Message
	Err     *protocol.DecodeError
	Size    int
}

func (e Event) String() string {
	switch e.Kind {
	case EventMessage:
		return fmt.Sprintf("message %s (%d bytes)", e.Message.MsgType, e.Size)
	case EventError, EventFatal:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Framer accumulates bytes from a stream and yields decoded messages in
// arrival order. It is not safe for concurrent use; one framer serves one
// connection.
type Framer struct {
	dec    Decoder
	limits Limits
	buf    []byte
	off    int
	fatal  *protocol.DecodeError
}

func New(dec Decoder, limits Limits) *Framer {
	return &Framer{dec: dec, limits: limits.normalized()}
}

// Feed appends p to the buffer. It fails without buffering anything when
// the unconsumed bytes would exceed MaxBufferBytes.
func (f *Framer) Feed(p []byte) error {
	if f.Buffered()+len(p) > f.limits.MaxBufferBytes {
		return fmt.Errorf("%w: %d buffered, %d incoming, limit %d", ErrBufferFull, f.Buffered(), len(p), f.limits.MaxBufferBytes)
	}
	if f.off > 0 && f.off >= len(f.buf)/2 {
		f.buf = append(f.buf[:0], f.buf[f.off:]...)
		f.off = 0
	}
	f.buf = append(f.buf, p...)
	return nil
}

// Write implements io.Writer on top of Feed.
func (f *Framer) Write(p []byte) (int, error) {
	if err := f.Feed(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Poll decodes at most one message from the buffered bytes. Non-fatal
// errors drop the offending bytes and report them once. A fatal error is
// reported on every call until Reset.
func (f *Framer) Poll() Event {
	if f.fatal != nil {
		return Event{Kind: EventFatal, Err: f.fatal}
	}
	if f.off == len(f.buf) {
		return Event{Kind: EventNeedMoreData}
	}
	out := f.dec.TryDecode(f.buf[f.off:])
	switch out.Status {
	case protocol.Complete:
		f.off += out.Consumed
		return Event{Kind: EventMessage, Message: out.Message, Size: out.Consumed}
	case protocol.Invalid:
		if out.Err.Fatal() {
			f.fatal = out.Err
			return Event{Kind: EventFatal, Err: out.Err}
		}
		f.off += out.Consumed
		return Event{Kind: EventError, Err: out.Err, Size: out.Consumed}
	default:
		return Event{Kind: EventNeedMoreData}
	}
}

// Buffered returns the number of unconsumed bytes.
func (f *Framer) Buffered() int {
	return len(f.buf) - f.off
}

// Reset drops all buffered bytes and clears a fatal state.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.off = 0
	f.fatal = nil
}
